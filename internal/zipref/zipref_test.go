package zipref

import (
	"os"
	"path/filepath"
	"testing"
)

func testRecords() []Record {
	return []Record{
		{Zip: "94105", City: "San Francisco", County: "San Francisco", StateAbbr: "CA"},
		{Zip: "94104", City: "San Francisco", County: "San Francisco", StateAbbr: "CA"},
		{Zip: "93401", City: "San Luis Obispo", County: "San Luis Obispo", StateAbbr: "CA"},
		{Zip: "59001", City: "Absarokee", County: "Stillwater", StateAbbr: "MT"},
		{Zip: "10001", City: "New York", County: "New York", StateAbbr: "NY"},
		// 元数据不完整：存在但城市为空
		{Zip: "73301", City: "", County: "", StateAbbr: "TX"},
	}
}

func TestZipToInt(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"94105", 94105, true},
		{"00501", 501, true},
		{"9410", 0, false},
		{"941050", 0, false},
		{"94a05", 0, false},
		{"", 0, false},
		{"-1234", 0, false},
	}
	for _, c := range cases {
		v, err := ZipToInt(c.in)
		if c.ok && (err != nil || v != c.want) {
			t.Fatalf("ZipToInt(%q) = %d, %v; want %d", c.in, v, err, c.want)
		}
		if !c.ok && err == nil {
			t.Fatalf("ZipToInt(%q) accepted invalid input", c.in)
		}
	}
}

func TestDatasetLookup(t *testing.T) {
	ds := NewDatasetFromRecords(testRecords())
	if ds.Count() != 6 {
		t.Fatalf("count = %d, want 6", ds.Count())
	}
	l, ok := ds.Lookup("94105")
	if !ok {
		t.Fatal("expected hit for 94105")
	}
	if l.City != "San Francisco" || l.StateAbbr != "CA" || l.State != "California" {
		t.Fatalf("unexpected location: %+v", l)
	}
	if l.Zip != "94105" {
		t.Fatalf("zip = %q, want 94105", l.Zip)
	}
	if _, ok := ds.Lookup("94106"); ok {
		t.Fatal("unexpected hit for absent zip")
	}
	if _, ok := ds.Lookup("0000"); ok {
		t.Fatal("unexpected hit for malformed zip")
	}
}

func TestDatasetFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zips.csv")
	csv := "zip,city,county,state_abbr\n94105,San Francisco,San Francisco,ca\n59001,Absarokee,Stillwater,MT\nbadrow\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	ds, err := NewDatasetCache(path)
	if err != nil {
		t.Fatalf("NewDatasetCache: %v", err)
	}
	if ds.Count() != 2 {
		t.Fatalf("count = %d, want 2", ds.Count())
	}
	l, ok := ds.Lookup("94105")
	if !ok || l.StateAbbr != "CA" {
		t.Fatalf("state abbr not upper-cased: %+v ok=%v", l, ok)
	}
}

func TestResolverValidate(t *testing.T) {
	ref := NewResolver(NewChain(NewDatasetFromRecords(testRecords())))
	for _, zip := range []string{"94105", "59001", "73301"} {
		if !ref.Validate(zip) {
			t.Fatalf("Validate(%q) = false, want true", zip)
		}
	}
	// 形状正确但不真实存在的编码必须拒绝
	for _, zip := range []string{"00000", "99999", "123", "1234a", ""} {
		if ref.Validate(zip) {
			t.Fatalf("Validate(%q) = true, want false", zip)
		}
	}
}

func TestResolverResolve(t *testing.T) {
	ref := NewResolver(NewChain(NewDatasetFromRecords(testRecords())))
	l, err := ref.Resolve("93401")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if l.City != "San Luis Obispo" || l.StateAbbr != "CA" || l.County != "San Luis Obispo" {
		t.Fatalf("unexpected location: %+v", l)
	}
	if l.State != "California" {
		t.Fatalf("state name = %q, want California", l.State)
	}
	// 有效但元数据不完整：与非法邮编区分的独立结果
	if _, err := ref.Resolve("73301"); err != ErrNotFound {
		t.Fatalf("incomplete metadata: err = %v, want ErrNotFound", err)
	}
	if _, err := ref.Resolve("99999"); err != ErrNotFound {
		t.Fatalf("absent zip: err = %v, want ErrNotFound", err)
	}
}

type fixedSource struct {
	zip string
	loc Location
}

func (s fixedSource) Lookup(zip string) (Location, bool) {
	if zip == s.zip {
		return s.loc, true
	}
	return Location{}, false
}

func TestChainOrder(t *testing.T) {
	ds := NewDatasetFromRecords(testRecords())
	override := fixedSource{zip: "94105", loc: Location{Zip: "94105", City: "Oakland", StateAbbr: "CA"}}
	c := NewChain(override, ds)
	l, ok := c.Lookup("94105")
	if !ok || l.City != "Oakland" {
		t.Fatalf("override not preferred: %+v ok=%v", l, ok)
	}
	l, ok = c.Lookup("59001")
	if !ok || l.City != "Absarokee" {
		t.Fatalf("fallthrough to dataset failed: %+v ok=%v", l, ok)
	}
	if _, ok := c.Lookup("99999"); ok {
		t.Fatal("unexpected hit")
	}
}

func TestDynamicCacheSwap(t *testing.T) {
	var d DynamicCache
	if d.Ready() {
		t.Fatal("empty dynamic cache reports ready")
	}
	if _, ok := d.Lookup("94105"); ok {
		t.Fatal("unexpected hit before Set")
	}
	d.Set(NewDatasetFromRecords(testRecords()))
	if !d.Ready() {
		t.Fatal("dynamic cache not ready after Set")
	}
	if _, ok := d.Lookup("94105"); !ok {
		t.Fatal("expected hit after Set")
	}
	d.Set(NewDatasetFromRecords(nil))
	if _, ok := d.Lookup("94105"); ok {
		t.Fatal("stale cache still visible after swap")
	}
}

func TestStateName(t *testing.T) {
	if StateName("ca") != "California" {
		t.Fatalf("StateName(ca) = %q", StateName("ca"))
	}
	if StateName("ZZ") != "" {
		t.Fatal("unknown abbr should map to empty string")
	}
	if !KnownState(" mt ") {
		t.Fatal("KnownState should trim and upper-case")
	}
}
