package activity

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/c360/fedwire/errors"
)

// Link references an external resource inline, for tagging in a post.
type Link struct {
	Href string `json:"href"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// NewLink creates a plain Link tag.
func NewLink(href, name string) Link {
	return Link{Href: href, Name: name, Type: "Link"}
}

// NewMention creates a Link specialized for mentioning an actor.
func NewMention(href, name string) Link {
	return Link{Href: href, Name: name, Type: "Mention"}
}

// IsMention reports whether the link carries the Mention discriminant.
func (l Link) IsMention() bool {
	return l.Type == "Mention"
}

// Signature carries provenance metadata for a signed object.
// Verification is the responsibility of the transport layer; this core
// only preserves the block across conversions.
type Signature struct {
	Creator        string `json:"creator"`
	Created        string `json:"created"`
	SignatureValue string `json:"signatureValue"`
	Type           string `json:"type"`
}

// NewSignature creates a signature block with the fixed algorithm tag.
func NewSignature(creator, created, value string) Signature {
	return Signature{
		Creator:        creator,
		Created:        created,
		SignatureValue: value,
		Type:           "RsaSignature2017",
	}
}

// Image is an embedded displayable resource.
type Image struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

// NewImage creates an image reference.
func NewImage(url, name string) Image {
	return Image{URL: url, Name: name, Type: "Image"}
}

// remoteIDPattern matches http(s) URLs without whitespace, the only
// accepted shape for federation identifiers.
var remoteIDPattern = regexp.MustCompile(`^https?://[^\s]+$`)

// ValidateRemoteID checks that an external identifier looks like a
// federation URL.
func ValidateRemoteID(remoteID string) error {
	if remoteIDPattern.MatchString(remoteID) {
		return nil
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: %q", errors.ErrInvalidRemoteID, remoteID),
		"activity", "ValidateRemoteID", "identifier validation")
}

// wireTimeFormats lists the timestamp layouts accepted from remote
// servers, most specific first.
var wireTimeFormats = []string{
	time.RFC3339,
	http.TimeFormat,
	time.RFC1123,
	time.RFC1123Z,
}

// ParseTime parses a wire timestamp in any accepted layout.
func ParseTime(value string) (time.Time, error) {
	for _, layout := range wireTimeFormats {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.WrapInvalid(
		fmt.Errorf("%w: unparseable timestamp %q", errors.ErrInvalidData, value),
		"activity", "ParseTime", "timestamp parsing")
}

// FormatTime renders a timestamp in the canonical outbound layout.
func FormatTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
