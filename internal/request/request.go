package request

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/abdulachik/linkrunner/internal/apperrors"
)

// Length limits
const (
	MaxURLLength  = 2048
	MaxPostLength = 3000
)

// Schemas for every request shape.
var (
	ProfileSchema = Schema{
		Name:   "profile",
		Fields: []Field{{Name: "profile_url", Kind: KindURL, MaxLen: MaxURLLength}},
	}

	PostSchema = Schema{
		Name:   "post",
		Fields: []Field{{Name: "text", Kind: KindText, MinLen: 1, MaxLen: MaxPostLength}},
	}

	LeadSchema = Schema{
		Name:   "lead",
		Fields: []Field{{Name: "linkedin_profile_url", Kind: KindURL, MaxLen: MaxURLLength}},
	}
)

// Request is a validated caller input. Implementations are immutable.
type Request interface {
	// Schema returns the name of the schema the request was validated against.
	Schema() string

	// Values returns a copy of the validated fields.
	Values() map[string]string
}

// Profile identifies a LinkedIn profile.
type Profile struct {
	profileURL string
}

// NewProfile validates raw input into a Profile.
func NewProfile(raw map[string]any) (Profile, error) {
	v, err := ProfileSchema.Validate(raw)
	if err != nil {
		return Profile{}, err
	}
	return Profile{profileURL: v["profile_url"]}, nil
}

func (p Profile) ProfileURL() string { return p.profileURL }
func (p Profile) Schema() string     { return ProfileSchema.Name }
func (p Profile) Values() map[string]string {
	return map[string]string{"profile_url": p.profileURL}
}

// Post is the content of a LinkedIn post.
type Post struct {
	text string
}

// NewPost validates raw input into a Post.
func NewPost(raw map[string]any) (Post, error) {
	v, err := PostSchema.Validate(raw)
	if err != nil {
		return Post{}, err
	}
	return Post{text: v["text"]}, nil
}

func (p Post) Text() string   { return p.text }
func (p Post) Schema() string { return PostSchema.Name }
func (p Post) Values() map[string]string {
	return map[string]string{"text": p.text}
}

// Lead is a profile to store as a lead.
type Lead struct {
	profileURL string
}

// NewLead validates raw input into a Lead.
func NewLead(raw map[string]any) (Lead, error) {
	v, err := LeadSchema.Validate(raw)
	if err != nil {
		return Lead{}, err
	}
	return Lead{profileURL: v["linkedin_profile_url"]}, nil
}

func (l Lead) ProfileURL() string { return l.profileURL }
func (l Lead) Schema() string     { return LeadSchema.Name }
func (l Lead) Values() map[string]string {
	return map[string]string{"linkedin_profile_url": l.profileURL}
}

// Parser builds a typed Request from raw input.
type Parser func(raw map[string]any) (Request, error)

// ParseProfile adapts NewProfile to a Parser.
func ParseProfile(raw map[string]any) (Request, error) { return NewProfile(raw) }

// ParsePost adapts NewPost to a Parser.
func ParsePost(raw map[string]any) (Request, error) { return NewPost(raw) }

// ParseLead adapts NewLead to a Parser.
func ParseLead(raw map[string]any) (Request, error) { return NewLead(raw) }

// Decode turns a JSON object into raw input. Numbers are kept as json.Number
// so they are rejected as non-strings rather than silently converted.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, apperrors.Validation("", fmt.Sprintf("input must be a JSON object: %v", err))
	}
	if dec.More() {
		return nil, apperrors.Validation("", "input must contain a single JSON object")
	}
	if raw == nil {
		return nil, apperrors.Validation("", "input must be a JSON object")
	}
	return raw, nil
}
