package citygroup

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testLookup() *Lookup {
	return New(map[string][]string{
		"TYO": {"NRT", "HND"},
		"lon": {"LHR", "LGW", "lcy"},
	})
}

func TestIsCity(t *testing.T) {
	l := testLookup()
	if !l.IsCity("TYO") {
		t.Error("IsCity(TYO) = false, want true")
	}
	if !l.IsCity("lon") {
		t.Error("IsCity(lon) = false, want true (case-insensitive)")
	}
	if l.IsCity("NRT") {
		t.Error("IsCity(NRT) = true, want false (airport, not city)")
	}
}

func TestExpand(t *testing.T) {
	l := testLookup()

	got := l.Expand("TYO")
	want := []string{"HND", "NRT"} // sorted
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand(TYO) = %v, want %v", got, want)
	}

	got = l.Expand("LAX")
	if !reflect.DeepEqual(got, []string{"LAX"}) {
		t.Errorf("Expand(LAX) = %v, want [LAX]", got)
	}
}

func TestSameCity(t *testing.T) {
	l := testLookup()

	city, ok := l.SameCity("NRT", "HND")
	if !ok || city != "TYO" {
		t.Errorf("SameCity(NRT, HND) = %q, %v, want TYO, true", city, ok)
	}
	if _, ok := l.SameCity("NRT", "LHR"); ok {
		t.Error("SameCity(NRT, LHR) = true, want false")
	}
	if _, ok := l.SameCity("NRT", "LAX"); ok {
		t.Error("SameCity(NRT, LAX) = true, want false (LAX unmapped)")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.yaml")
	data := "TYO: [NRT, HND]\nPAR: [CDG, ORY]\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if city, ok := l.CityOf("CDG"); !ok || city != "PAR" {
		t.Errorf("CityOf(CDG) = %q, %v, want PAR, true", city, ok)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load(absent) = nil error, want error")
	}
}
