package rules

import (
	"strings"
	"testing"

	"recycle-api/internal/zipref"
)

func TestGenerateLinksWithLocation(t *testing.T) {
	loc := &zipref.Location{Zip: "94104", City: "San Francisco", State: "California", StateAbbr: "CA"}
	rs := GenerateLinks("94104", loc)
	if rs["default"] == "" || rs["company"] == "" {
		t.Fatalf("mandatory fields missing: %+v", rs)
	}
	if !strings.Contains(rs["default"], "San Francisco, CA") {
		t.Fatalf("default must name the location: %q", rs["default"])
	}
	if !strings.Contains(rs["earth911_link"], "94104") {
		t.Fatalf("search link must carry the postal code: %q", rs["earth911_link"])
	}
	if !strings.HasPrefix(rs["earth911_link"], "https://search.earth911.com/") {
		t.Fatalf("unexpected link base: %q", rs["earth911_link"])
	}
	if !strings.Contains(rs["company"], "waste management") {
		t.Fatalf("company must point at local waste management: %q", rs["company"])
	}
	// 通用分类指引引用解析出的城市
	for _, k := range []string{"bottle", "cup", "wine glass", "vase"} {
		if rs[k] == "" {
			t.Fatalf("missing generic guidance for %q", k)
		}
	}
	if !strings.Contains(rs["bottle"], "San Francisco") {
		t.Fatalf("generic guidance should reference the city: %q", rs["bottle"])
	}
}

func TestGenerateLinksWithoutLocation(t *testing.T) {
	rs := GenerateLinks("59001", nil)
	if !strings.Contains(rs["default"], "ZIP 59001") {
		t.Fatalf("default must fall back to zip naming: %q", rs["default"])
	}
	if !strings.Contains(rs["earth911_link"], "59001") {
		t.Fatalf("search link must carry the postal code: %q", rs["earth911_link"])
	}
}
