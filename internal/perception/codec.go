package perception

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"normcode/internal/logging"
	"normcode/internal/plan"
)

// TagPair is the symmetric perceive/format implementation for one sign tag.
// New resource kinds are added by registering a new pair, not by subclassing
// anything.
type TagPair struct {
	// Perceive resolves a sign to its underlying value.
	Perceive func(sign plan.Sign) (any, error)
	// Format wraps a produced value as a sign with the given short id.
	Format func(value any, id string) (plan.Sign, error)
}

// Codec encodes and decodes perceptual signs against a path map. For any
// supported tag T and value v, Perceive(Format(v, T)) must reproduce a value
// observationally equal to v (the round-trip law).
type Codec struct {
	paths *PathMap

	mu       sync.RWMutex
	registry map[plan.SignTag]TagPair
}

// NewCodec builds a codec with all builtin tag pairs registered.
func NewCodec(paths *PathMap) *Codec {
	c := &Codec{
		paths:    paths,
		registry: make(map[plan.SignTag]TagPair),
	}
	c.registerBuiltins()
	return c
}

// Register adds (or replaces) the pair for a tag.
func (c *Codec) Register(tag plan.SignTag, pair TagPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry[tag] = pair
	logging.PerceptionDebug("Registered codec pair for tag %s", tag)
}

func (c *Codec) pair(tag plan.SignTag) (TagPair, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pair, ok := c.registry[tag]
	if !ok {
		return TagPair{}, fmt.Errorf("no codec pair registered for tag %s", tag)
	}
	return pair, nil
}

// Perceive resolves a sign string to its underlying value. Values that are
// not signs are forwarded untouched (the literal branch of the annotation
// contract).
func (c *Codec) Perceive(value any) (any, error) {
	s, ok := value.(string)
	if !ok || !plan.IsSign(s) {
		return value, nil
	}
	sign, err := plan.ParseSign(s)
	if err != nil {
		return nil, err
	}
	return c.PerceiveSign(sign)
}

// PerceiveSign resolves a parsed sign.
func (c *Codec) PerceiveSign(sign plan.Sign) (any, error) {
	timer := logging.StartTimer(logging.CategoryPerception, "perceive "+string(sign.Tag))
	defer timer.Stop()

	pair, err := c.pair(sign.Tag)
	if err != nil {
		return nil, err
	}
	v, err := pair.Perceive(sign)
	if err != nil {
		return nil, fmt.Errorf("perceive %s: %w", sign.Tag, err)
	}
	return v, nil
}

// Format wraps a produced value as a sign of the declared shape and returns
// its wire form.
func (c *Codec) Format(value any, tag plan.SignTag) (string, error) {
	pair, err := c.pair(tag)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()[:8]
	sign, err := pair.Format(value, id)
	if err != nil {
		return "", fmt.Errorf("format %s: %w", tag, err)
	}
	logging.PerceptionDebug("Formatted value as %s sign %s", tag, sign.ID)
	return sign.String(), nil
}

// registerBuiltins installs the pairs for the supported resource kinds.
// Every Format writes (or stores), and the matching Perceive reads back,
// so the round-trip law holds for each.
func (c *Codec) registerBuiltins() {
	c.registry[plan.TagLiteral] = TagPair{
		Perceive: func(sign plan.Sign) (any, error) {
			var v any
			if err := json.Unmarshal([]byte(sign.Payload), &v); err != nil {
				return nil, fmt.Errorf("bad literal payload: %w", err)
			}
			return v, nil
		},
		Format: func(value any, id string) (plan.Sign, error) {
			data, err := json.Marshal(value)
			if err != nil {
				return plan.Sign{}, fmt.Errorf("value not encodable: %w", err)
			}
			return plan.Sign{Tag: plan.TagLiteral, ID: id, Payload: string(data)}, nil
		},
	}

	c.registry[plan.TagBool] = TagPair{
		Perceive: func(sign plan.Sign) (any, error) {
			b, err := strconv.ParseBool(sign.Payload)
			if err != nil {
				return nil, fmt.Errorf("bad bool payload %q", sign.Payload)
			}
			return b, nil
		},
		Format: func(value any, id string) (plan.Sign, error) {
			b, ok := value.(bool)
			if !ok {
				return plan.Sign{}, fmt.Errorf("bool shape requires a bool, got %T", value)
			}
			return plan.Sign{Tag: plan.TagBool, ID: id, Payload: strconv.FormatBool(b)}, nil
		},
	}

	c.registry[plan.TagFile] = c.locationPair(plan.TagFile)
	c.registry[plan.TagSave] = c.locationPair(plan.TagSave)

	c.registry[plan.TagFileList] = TagPair{
		Perceive: func(sign plan.Sign) (any, error) {
			if sign.Payload == "" {
				return []any{}, nil
			}
			paths := strings.Split(sign.Payload, "|")
			values := make([]any, 0, len(paths))
			for _, p := range paths {
				v, err := c.readLocation(plan.TagFileList, p)
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
			return values, nil
		},
		Format: func(value any, id string) (plan.Sign, error) {
			elems, ok := value.([]any)
			if !ok {
				return plan.Sign{}, fmt.Errorf("filelist shape requires a list, got %T", value)
			}
			paths := make([]string, 0, len(elems))
			for i, elem := range elems {
				rel := fmt.Sprintf("%s_%d.json", id, i)
				if err := c.writeLocation(plan.TagFileList, rel, elem); err != nil {
					return plan.Sign{}, err
				}
				paths = append(paths, rel)
			}
			return plan.Sign{Tag: plan.TagFileList, ID: id, Payload: strings.Join(paths, "|")}, nil
		},
	}

	c.registry[plan.TagPrompt] = c.textPair(plan.TagPrompt)
	c.registry[plan.TagScript] = c.textPair(plan.TagScript)

	c.registry[plan.TagParam] = TagPair{
		Perceive: func(sign plan.Sign) (any, error) {
			v, ok := c.paths.Param(sign.Payload)
			if !ok {
				return nil, fmt.Errorf("%w: parameter %q", ErrResourceMissing, sign.Payload)
			}
			return v, nil
		},
		Format: func(value any, id string) (plan.Sign, error) {
			s, ok := value.(string)
			if !ok {
				return plan.Sign{}, fmt.Errorf("param shape requires a string, got %T", value)
			}
			c.paths.SetParam(id, s)
			return plan.Sign{Tag: plan.TagParam, ID: id, Payload: id}, nil
		},
	}
}

// locationPair builds the pair for single-location tags: format writes the
// JSON-encoded value to a mapped location, perceive decodes it back.
func (c *Codec) locationPair(tag plan.SignTag) TagPair {
	return TagPair{
		Perceive: func(sign plan.Sign) (any, error) {
			return c.readLocation(tag, sign.Payload)
		},
		Format: func(value any, id string) (plan.Sign, error) {
			rel := id + ".json"
			if err := c.writeLocation(tag, rel, value); err != nil {
				return plan.Sign{}, err
			}
			return plan.Sign{Tag: tag, ID: id, Payload: rel}, nil
		},
	}
}

// textPair builds the pair for text resources (prompts, scripts).
func (c *Codec) textPair(tag plan.SignTag) TagPair {
	return TagPair{
		Perceive: func(sign plan.Sign) (any, error) {
			path, err := c.paths.Resolve(tag, sign.Payload)
			if err != nil {
				return nil, err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, &ResourceError{Sign: sign, Path: path, Err: err}
			}
			return string(data), nil
		},
		Format: func(value any, id string) (plan.Sign, error) {
			s, ok := value.(string)
			if !ok {
				return plan.Sign{}, fmt.Errorf("%s shape requires a string, got %T", tag, value)
			}
			rel := id + ".txt"
			path, err := c.paths.Resolve(tag, rel)
			if err != nil {
				return plan.Sign{}, err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return plan.Sign{}, err
			}
			if err := os.WriteFile(path, []byte(s), 0644); err != nil {
				return plan.Sign{}, err
			}
			return plan.Sign{Tag: tag, ID: id, Payload: rel}, nil
		},
	}
}

func (c *Codec) readLocation(tag plan.SignTag, payload string) (any, error) {
	path, err := c.paths.Resolve(tag, payload)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ResourceError{Sign: plan.Sign{Tag: tag, Payload: payload}, Path: path, Err: err}
	}
	// Data files are JSON when they decode; raw text otherwise.
	if strings.HasSuffix(path, ".json") {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("bad JSON at %s: %w", path, err)
		}
		return v, nil
	}
	return string(data), nil
}

func (c *Codec) writeLocation(tag plan.SignTag, rel string, value any) error {
	path, err := c.paths.Resolve(tag, rel)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("value not encodable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
