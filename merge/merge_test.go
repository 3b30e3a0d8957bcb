package merge

import (
	"reflect"
	"testing"

	"github.com/minios-linux/autoi18n/tree"
)

func leaf(t *testing.T, tr *tree.Tree, path ...string) string {
	t.Helper()
	p := path[0]
	for _, s := range path[1:] {
		p += tree.Sep + s
	}
	n, ok := tr.Lookup(p)
	if !ok || !n.IsText() {
		t.Fatalf("no text leaf at %s", tree.Display(p))
	}
	return n.Text
}

func TestMergeOverwritesAndPreserves(t *testing.T) {
	nav := tree.New()
	nav.Set("home", tree.Text("Accueil"))
	nav.Set("about", tree.Text("A propos"))

	existing := tree.New()
	existing.Set("count", tree.Opaque("(n) => { return n }"))
	existing.Set("a", tree.Text("X"))
	existing.Set("nav", tree.Branch(nav))

	updNav := tree.New()
	updNav.Set("about", tree.Text("A propos de nous"))
	updNav.Set("blog", tree.Text("Blog"))
	updates := tree.New()
	updates.Set("nav", tree.Branch(updNav))
	updates.Set("b", tree.Text("Y"))

	got := Merge(existing, updates)

	if want := []string{"count", "a", "nav", "b"}; !reflect.DeepEqual(got.Keys(), want) {
		t.Fatalf("keys = %v, want %v", got.Keys(), want)
	}
	if v := leaf(t, got, "a"); v != "X" {
		t.Fatalf("a = %q, want X", v)
	}
	if v := leaf(t, got, "nav", "home"); v != "Accueil" {
		t.Fatalf("nav.home = %q, want Accueil", v)
	}
	if v := leaf(t, got, "nav", "about"); v != "A propos de nous" {
		t.Fatalf("nav.about = %q", v)
	}
	if v := leaf(t, got, "nav", "blog"); v != "Blog" {
		t.Fatalf("nav.blog = %q", v)
	}
	if n, _ := got.Get("count"); n.Kind != tree.KindOpaque {
		t.Fatalf("opaque entry lost: %#v", n)
	}

	// Inputs are not mutated.
	if _, ok := existing.Get("b"); ok {
		t.Fatal("Merge mutated existing tree")
	}
}

func TestMergeLeafReplacesBranch(t *testing.T) {
	sub := tree.New()
	sub.Set("x", tree.Text("1"))
	existing := tree.New()
	existing.Set("k", tree.Branch(sub))

	updates := tree.New()
	updates.Set("k", tree.Text("flat"))

	if v := leaf(t, Merge(existing, updates), "k"); v != "flat" {
		t.Fatalf("k = %q, want flat", v)
	}
}

func TestPendingIncremental(t *testing.T) {
	source := tree.New()
	source.Set("a", tree.Text("1"))
	source.Set("b", tree.Text("2"))

	existing := tree.New()
	existing.Set("a", tree.Text("X"))

	got := Pending(source, existing)
	if want := []string{"b"}; !reflect.DeepEqual(got.Keys(), want) {
		t.Fatalf("Pending keys = %v, want %v", got.Keys(), want)
	}
	if v := leaf(t, got, "b"); v != "2" {
		t.Fatalf("b = %q, want 2", v)
	}
}

func TestPendingNestedAndEmpty(t *testing.T) {
	srcNav := tree.New()
	srcNav.Set("home", tree.Text("Home"))
	srcNav.Set("about", tree.Text("About"))
	source := tree.New()
	source.Set("nav", tree.Branch(srcNav))
	source.Set("title", tree.Text("Title"))
	source.Set("fn", tree.Opaque("() => 1"))
	source.Set("kind", tree.Text("Kind"))

	outNav := tree.New()
	outNav.Set("home", tree.Text("Accueil"))
	outNav.Set("about", tree.Text(""))
	existing := tree.New()
	existing.Set("nav", tree.Branch(outNav))
	existing.Set("title", tree.Text("Titre"))
	existing.Set("kind", tree.Branch(tree.New()))

	got := tree.Flatten(Pending(source, existing))
	want := []string{"nav" + tree.Sep + "about", "kind"}
	if !reflect.DeepEqual(got.Keys(), want) {
		t.Fatalf("Pending paths = %q, want %q", got.Keys(), want)
	}
}

func TestPendingNilExisting(t *testing.T) {
	source := tree.New()
	source.Set("a", tree.Text("1"))
	if got := Pending(source, nil); got.Len() != 1 {
		t.Fatalf("Pending(source, nil) len = %d, want 1", got.Len())
	}
}

func TestChanged(t *testing.T) {
	source := tree.New()
	source.Set("a", tree.Text("1"))
	source.Set("b", tree.Text("2"))

	got := Changed(source, func(path, value string) bool { return value == "2" })
	if want := []string{"b"}; !reflect.DeepEqual(got.Keys(), want) {
		t.Fatalf("Changed keys = %v, want %v", got.Keys(), want)
	}
}

func TestSkeletonAndAlign(t *testing.T) {
	sub := tree.New()
	sub.Set("plural", tree.Opaque("(n) => { return n }"))
	sub.Set("one", tree.Text("One"))
	source := tree.New()
	source.Set("greet", tree.Method("greet() { return 'hi' }"))
	source.Set("title", tree.Text("Title"))
	source.Set("nums", tree.Branch(sub))
	source.Set("plain", tree.Branch(tree.New()))

	sk := Skeleton(source)
	if want := []string{"greet", "nums"}; !reflect.DeepEqual(sk.Keys(), want) {
		t.Fatalf("Skeleton keys = %v, want %v", sk.Keys(), want)
	}

	results := tree.New()
	resSub := tree.New()
	resSub.Set("one", tree.Text("Un"))
	results.Set("nums", tree.Branch(resSub))
	results.Set("title", tree.Text("Titre"))
	results.Set("extra", tree.Text("?"))

	aligned := Align(Merge(sk, results), source)
	if want := []string{"greet", "title", "nums", "extra"}; !reflect.DeepEqual(aligned.Keys(), want) {
		t.Fatalf("Align keys = %v, want %v", aligned.Keys(), want)
	}
	n, _ := aligned.Get("nums")
	if want := []string{"plural", "one"}; !reflect.DeepEqual(n.Tree.Keys(), want) {
		t.Fatalf("nested Align keys = %v, want %v", n.Tree.Keys(), want)
	}
}

func TestPendingKeepsRawAndEmpty(t *testing.T) {
	source := tree.New()
	source.Set("fn", tree.Text("Function"))
	source.Set("blank", tree.Text(""))
	existing := tree.New()
	existing.Set("fn", tree.Opaque("() => 'custom'"))
	existing.Set("blank", tree.Text(""))

	if got := Pending(source, existing); got.Len() != 0 {
		t.Fatalf("Pending keys = %v, want none", got.Keys())
	}
}
