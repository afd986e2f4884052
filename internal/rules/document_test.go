package rules

import (
	"testing"
)

func TestDecodeHierarchical(t *testing.T) {
	data := []byte(`{"zips":{"94105":{"bottle":"blue bin"}},"states":{"CA":{"default":"check calrecycle"}}}`)
	d, migrated, err := decodeDocument(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if migrated {
		t.Fatal("hierarchical input flagged as migrated")
	}
	if d.Zips["94105"]["bottle"] != "blue bin" {
		t.Fatalf("zips tier lost: %+v", d.Zips)
	}
	if d.Cities == nil || d.NationalDefault == nil {
		t.Fatal("absent tiers must be initialized to empty maps")
	}
	if d.Version != documentVersion {
		t.Fatalf("version = %d, want %d", d.Version, documentVersion)
	}
}

func TestDecodeLegacyFlat(t *testing.T) {
	data := []byte(`{"94105":{"bottle":"rinse and recycle","company":"Recology"},"10001":{"default":"see nyc.gov"}}`)
	d, migrated, err := decodeDocument(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !migrated {
		t.Fatal("flat input not flagged as migrated")
	}
	if len(d.Zips) != 2 {
		t.Fatalf("zips = %d, want 2", len(d.Zips))
	}
	if d.Zips["94105"]["company"] != "Recology" {
		t.Fatalf("entry lost in migration: %+v", d.Zips["94105"])
	}
	if len(d.Cities) != 0 || len(d.States) != 0 || len(d.NationalDefault) != 0 {
		t.Fatal("migrated document must have empty cities/states/national_default")
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, data := range []string{
		`not json`,
		`[]`,
		`{"94105":"just a string"}`,
		`{"zips":"not a map"}`,
	} {
		if _, _, err := decodeDocument([]byte(data)); err == nil {
			t.Fatalf("decode(%q) accepted malformed input", data)
		}
	}
}

func TestDecodeEmptyObject(t *testing.T) {
	d, migrated, err := decodeDocument([]byte(`{}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if migrated {
		t.Fatal("empty object flagged as migrated")
	}
	if len(d.Zips) != 0 || d.NationalDefault == nil {
		t.Fatalf("unexpected document: %+v", d)
	}
}

func TestCityKeyNormalization(t *testing.T) {
	cases := []struct {
		city, abbr, want string
	}{
		{"San Francisco", "CA", "San Francisco, CA"},
		{"SAN FRANCISCO", "ca", "San Francisco, CA"},
		{"  new   york ", " ny", "New York, NY"},
	}
	for _, c := range cases {
		got := NewCityKey(c.city, c.abbr).String()
		if got != c.want {
			t.Fatalf("NewCityKey(%q, %q) = %q, want %q", c.city, c.abbr, got, c.want)
		}
	}
}

func TestParseCityKey(t *testing.T) {
	k, ok := ParseCityKey("san francisco, ca")
	if !ok || k.String() != "San Francisco, CA" {
		t.Fatalf("ParseCityKey = %+v ok=%v", k, ok)
	}
	for _, raw := range []string{"no comma", ", CA", "City, CALIF", ""} {
		if _, ok := ParseCityKey(raw); ok {
			t.Fatalf("ParseCityKey(%q) accepted bad key", raw)
		}
	}
}

func TestRuleSetClone(t *testing.T) {
	rs := RuleSet{"bottle": "blue bin"}
	cp := rs.Clone()
	cp["bottle"] = "trash"
	if rs["bottle"] != "blue bin" {
		t.Fatal("clone shares storage with original")
	}
	if RuleSet(nil).Clone() != nil {
		t.Fatal("nil clone should stay nil")
	}
}
