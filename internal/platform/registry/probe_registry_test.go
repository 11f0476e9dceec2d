// internal/platform/registry/probe_registry_test.go
package registry

import (
	"errors"
	"sync"
	"testing"

	"reconx/internal/core/domain"
	"reconx/internal/core/ports"
	"reconx/internal/platform/logx"
	"reconx/internal/testutil"
)

func TestProbeRegistry_Register(t *testing.T) {
	registry := NewProbeRegistry(logx.NewNop())

	err := registry.Register("whois", testutil.ConstantSuccess(nil))
	testutil.AssertNoError(t, err, "register should succeed")
	testutil.AssertTrue(t, registry.IsRegistered("whois"), "probe should be registered")
	testutil.AssertEqual(t, registry.Len(), 1, "registry size")
}

func TestProbeRegistry_Register_Duplicate(t *testing.T) {
	registry := NewProbeRegistry(logx.NewNop())

	first := testutil.ConstantSuccess(map[string]any{"v": 1})
	testutil.AssertNoError(t, registry.Register("whois", first), "first register")

	err := registry.Register("whois", testutil.ConstantSuccess(nil))
	testutil.AssertErrorIs(t, err, domain.ErrDuplicateName, "duplicate registration")

	var dup *domain.DuplicateNameError
	testutil.AssertTrue(t, errors.As(err, &dup), "error should be DuplicateNameError")
	testutil.AssertEqual(t, dup.Name, "whois", "duplicate name")

	resolved, _ := registry.Resolve([]string{"whois"})
	testutil.AssertTrue(t, resolved["whois"] == ports.Probe(first), "original probe must be kept")
}

func TestProbeRegistry_Register_Invalid(t *testing.T) {
	registry := NewProbeRegistry(logx.NewNop())

	testutil.AssertErrorIs(t, registry.Register("  ", testutil.ConstantSuccess(nil)), domain.ErrEmptyProbeName, "empty name")
	testutil.AssertErrorIs(t, registry.Register("dns", nil), domain.ErrNilProbe, "nil probe")
}

func TestProbeRegistry_Resolve(t *testing.T) {
	registry := NewProbeRegistry(logx.NewNop())
	_ = registry.Register("whois", testutil.ConstantSuccess(nil))
	_ = registry.Register("dns", testutil.ConstantSuccess(nil))
	_ = registry.Register("ports", testutil.ConstantSuccess(nil))

	resolved, warnings := registry.Resolve([]string{"whois", "ports", "missing"})

	testutil.AssertEqual(t, len(resolved), 2, "resolved count")
	_, hasDNS := resolved["dns"]
	testutil.AssertFalse(t, hasDNS, "unrequested probe must not be resolved")
	testutil.AssertEqual(t, len(warnings), 1, "warnings count")
	testutil.AssertEqual(t, warnings[0].Name, "missing", "warning name")
}

func TestProbeRegistry_Resolve_Empty(t *testing.T) {
	registry := NewProbeRegistry(logx.NewNop())

	resolved, warnings := registry.Resolve([]string{"missing"})
	testutil.AssertEqual(t, len(resolved), 0, "resolved count")
	testutil.AssertEqual(t, len(warnings), 1, "warnings count")
}

func TestProbeRegistry_NamesAndDescribe(t *testing.T) {
	registry := NewProbeRegistry(logx.NewNop())
	_ = registry.RegisterWithMetadata("ports", testutil.ConstantSuccess(nil), ports.ProbeMetadata{
		Description: "TCP connect scan",
		Active:      true,
	})
	_ = registry.Register("dns", testutil.ConstantSuccess(nil))

	names := registry.Names()
	testutil.AssertEqual(t, len(names), 2, "names count")
	testutil.AssertEqual(t, names[0], "dns", "names sorted")

	meta, ok := registry.Describe("ports")
	testutil.AssertTrue(t, ok, "metadata should exist")
	testutil.AssertEqual(t, meta.Name, "ports", "metadata name")
	testutil.AssertTrue(t, meta.Active, "metadata active flag")
}

func TestProbeRegistry_ConcurrentRegister(t *testing.T) {
	registry := NewProbeRegistry(logx.NewNop())

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- registry.Register("same", testutil.ConstantSuccess(nil))
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	testutil.AssertEqual(t, ok, 1, "exactly one registration should win")
}
