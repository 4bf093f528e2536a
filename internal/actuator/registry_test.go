package actuator

import (
	"context"
	"errors"
	"testing"

	"normcode/internal/plan"
)

type stubActuator struct {
	name string
	fn   func(ctx context.Context, req *Request) (*Result, error)
}

func (s *stubActuator) Name() string { return s.name }

func (s *stubActuator) Actuate(ctx context.Context, req *Request) (*Result, error) {
	return s.fn(ctx, req)
}

func echoActuator(name string) *stubActuator {
	return &stubActuator{name: name, fn: func(_ context.Context, req *Request) (*Result, error) {
		return &Result{Value: req.Output, Raw: req.Output}, nil
	}}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoActuator("paradigm")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !r.Has("paradigm") {
		t.Error("Has should report the registered actuator")
	}
	if r.Get("paradigm") == nil {
		t.Error("Get returned nil for registered actuator")
	}
	if r.Get("script") != nil {
		t.Error("Get should return nil for unknown actuator")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoActuator("paradigm")); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register(echoActuator("paradigm")); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("got %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoActuator("")); !errors.Is(err, ErrNameEmpty) {
		t.Fatalf("got %v, want ErrNameEmpty", err)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"script", "judgement", "paradigm"} {
		if err := r.Register(echoActuator(name)); err != nil {
			t.Fatalf("Register %s failed: %v", name, err)
		}
	}
	names := r.Names()
	want := []string{"judgement", "paradigm", "script"}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
}

func TestRegistryActuate(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoActuator("paradigm"))

	req := &Request{Address: plan.MustParseAddress("1"), Output: "y"}
	result, err := r.Actuate(context.Background(), "paradigm", req)
	if err != nil {
		t.Fatalf("Actuate failed: %v", err)
	}
	if result.Value != "y" {
		t.Errorf("result = %v, want y", result.Value)
	}
}

func TestRegistryActuateUnknownName(t *testing.T) {
	r := NewRegistry()
	req := &Request{Address: plan.MustParseAddress("2.1"), Output: "y"}
	_, err := r.Actuate(context.Background(), "missing", req)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	var actErr *ActuationError
	if !errors.As(err, &actErr) {
		t.Fatal("registry failures should be ActuationErrors")
	}
	if actErr.Address.String() != "2.1" {
		t.Errorf("address = %s, want 2.1", actErr.Address)
	}
}

func TestRegistryActuateWrapsFailures(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.MustRegister(&stubActuator{name: "paradigm",
		fn: func(context.Context, *Request) (*Result, error) { return nil, boom }})

	req := &Request{Address: plan.MustParseAddress("3"), Output: "y"}
	_, err := r.Actuate(context.Background(), "paradigm", req)
	if !errors.Is(err, boom) {
		t.Fatalf("underlying error lost: %v", err)
	}
	var actErr *ActuationError
	if !errors.As(err, &actErr) || actErr.Actuator != "paradigm" {
		t.Fatalf("want ActuationError naming the actuator, got %v", err)
	}
}
