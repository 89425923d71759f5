package models

import "testing"

func territoryList(names ...string) []*Territory {
	out := make([]*Territory, 0, len(names))
	for _, name := range names {
		out = append(out, &Territory{Name: name})
	}
	return out
}

func TestPickTerritory(t *testing.T) {
	territories := territoryList("All Territories", "Netherlands", "Germany")

	if got := PickTerritory(territories, "germany", "Netherlands"); got != "Germany" {
		t.Fatalf("relation country should win, got %q", got)
	}
	if got := PickTerritory(territories, "France", "Netherlands"); got != "Netherlands" {
		t.Fatalf("home country fallback, got %q", got)
	}
	if got := PickTerritory(territories, "", ""); got != "Netherlands" {
		t.Fatalf("first non-generic leaf, got %q", got)
	}
	if got := PickTerritory(territoryList("All Territories"), "France", ""); got != "All Territories" {
		t.Fatalf("generic catchall as last resort, got %q", got)
	}
	if got := PickTerritory(nil, "France", "Netherlands"); got != "" {
		t.Fatalf("no territories gives empty, got %q", got)
	}
}

func TestIsGenericTerritory(t *testing.T) {
	for _, name := range []string{"All Territories", " rest of the world ", "Overige"} {
		if !IsGenericTerritory(name) {
			t.Fatalf("%q should be generic", name)
		}
	}
	if IsGenericTerritory("Netherlands") {
		t.Fatal("Netherlands should not be generic")
	}
}
