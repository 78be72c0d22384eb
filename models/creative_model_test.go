package models

import "testing"

func TestCreativeRender(t *testing.T) {
	creative := Creative{
		Type:    "text_link",
		Content: `<a href="{{referral_url}}">Join with code {{affiliate_code}}</a>`,
	}

	got := creative.Render("AB12CD34", "https://example.com/r")
	want := `<a href="https://example.com/r/AB12CD34">Join with code AB12CD34</a>`
	if got != want {
		t.Fatalf("rendered creative mismatch:\n got: %s\nwant: %s", got, want)
	}
}

func TestCreativeRenderTrimsTrailingSlash(t *testing.T) {
	creative := Creative{
		Type:    "html_snippet",
		Content: `{{referral_url}}`,
	}

	got := creative.Render("XYZ789AB", "https://example.com/r/")
	want := "https://example.com/r/XYZ789AB"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCreativeRenderWithoutPlaceholders(t *testing.T) {
	creative := Creative{
		Type:    "image_banner",
		Content: "Static banner copy",
	}

	if got := creative.Render("AB12CD34", "https://example.com/r"); got != "Static banner copy" {
		t.Fatalf("content without placeholders must pass through unchanged, got %q", got)
	}
}
