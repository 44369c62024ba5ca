package trademe

import (
	"errors"
	"testing"

	"listing-publisher/models"
)

func TestValidateURLAccepts(t *testing.T) {
	for _, raw := range []string{
		"https://www.trademe.co.nz/a/property/residential/rent/listing/1234567890",
		"https://trademe.co.nz/a/property/residential/rent/listing/1234567890",
		"  http://www.trademe.co.nz/listing/42  ",
	} {
		if _, err := ValidateURL(raw); err != nil {
			t.Errorf("ValidateURL(%q): unexpected error %v", raw, err)
		}
	}
}

func TestValidateURLRejects(t *testing.T) {
	for _, raw := range []string{
		"https://evil.com/trademe.co.nz/listing/123",
		"https://nottrademe.co.nz/listing/123",
		"ftp://trademe.co.nz/listing/123",
		"notaurl",
		"",
	} {
		_, err := ValidateURL(raw)
		if !errors.Is(err, models.ErrInvalidURL) {
			t.Errorf("ValidateURL(%q): got %v, want ErrInvalidURL", raw, err)
		}
		if !errors.Is(err, models.ErrExtraction) {
			t.Errorf("ValidateURL(%q): invalid URL should count as an extraction failure", raw)
		}
	}
}

func TestListingID(t *testing.T) {
	id, err := ListingID("https://www.trademe.co.nz/a/property/residential/rent/auckland/listing/5012345678?bof=x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "5012345678" {
		t.Errorf("ListingID: got %q, want 5012345678", id)
	}

	if _, err := ListingID("https://www.trademe.co.nz/a/property"); !errors.Is(err, models.ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
}
