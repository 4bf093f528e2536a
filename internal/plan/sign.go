package plan

import (
	"fmt"
	"strings"
)

// SignTag classifies what a perceptual sign refers to and therefore how the
// runtime resolves it.
type SignTag string

const (
	TagLiteral  SignTag = "literal"  // JSON-encoded value, forwarded untouched
	TagBool     SignTag = "bool"     // boolean literal
	TagFile     SignTag = "file"     // single data file location
	TagFileList SignTag = "filelist" // list of data file locations
	TagPrompt   SignTag = "prompt"   // prompt template location
	TagScript   SignTag = "script"   // executable script location
	TagSave     SignTag = "save"     // save path for produced artifacts
	TagParam    SignTag = "param"    // stored parameter lookup
)

const signPrefix = "sign:"

// Sign is a tagged, short-id-bearing reference to an external resource. Its
// wire form is "sign:<tag>:<id>:<payload>". Literal values never carry the
// prefix and pass through the runtime untouched.
type Sign struct {
	Tag     SignTag
	ID      string
	Payload string
}

// IsSign reports whether s carries the perceptual-sign prefix.
func IsSign(s string) bool {
	return strings.HasPrefix(s, signPrefix)
}

// ParseSign decodes the wire form of a sign.
func ParseSign(s string) (Sign, error) {
	if !IsSign(s) {
		return Sign{}, fmt.Errorf("not a perceptual sign: %q", s)
	}
	rest := s[len(signPrefix):]
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return Sign{}, fmt.Errorf("malformed perceptual sign: %q", s)
	}
	tag := SignTag(parts[0])
	if !ValidTag(tag) {
		return Sign{}, fmt.Errorf("unknown sign tag %q in %q", parts[0], s)
	}
	if parts[1] == "" {
		return Sign{}, fmt.Errorf("perceptual sign missing short id: %q", s)
	}
	return Sign{Tag: tag, ID: parts[1], Payload: parts[2]}, nil
}

// String encodes the wire form.
func (s Sign) String() string {
	return fmt.Sprintf("%s%s:%s:%s", signPrefix, s.Tag, s.ID, s.Payload)
}

// ValidTag reports whether t is one of the supported sign tags.
func ValidTag(t SignTag) bool {
	switch t {
	case TagLiteral, TagBool, TagFile, TagFileList, TagPrompt, TagScript, TagSave, TagParam:
		return true
	}
	return false
}
