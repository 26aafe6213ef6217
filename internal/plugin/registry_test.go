package plugin

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/strob0t/scavengarr/internal/domain"
)

type countingPlugin struct{ name string }

func (p *countingPlugin) Descriptor() domain.PluginDescriptor {
	return domain.PluginDescriptor{Name: p.name}
}
func (p *countingPlugin) Search(context.Context, domain.Query) ([]domain.SearchResult, error) {
	return nil, nil
}
func (p *countingPlugin) Cleanup(context.Context) error { return nil }

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	factory := func() (Plugin, error) { return &countingPlugin{name: "a"}, nil }
	if err := r.Discover("a", factory); err != nil {
		t.Fatalf("first discover: %v", err)
	}
	if err := r.Discover("a", factory); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestRegistryGetUnknownNameFails(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryConstructsLazilyAndExactlyOnce(t *testing.T) {
	r := NewRegistry()
	var constructions int
	var mu sync.Mutex
	if err := r.Discover("a", func() (Plugin, error) {
		mu.Lock()
		constructions++
		mu.Unlock()
		return &countingPlugin{name: "a"}, nil
	}); err != nil {
		t.Fatalf("discover: %v", err)
	}

	if constructions != 0 {
		t.Fatalf("Discover must not execute plugin code, got %d constructions", constructions)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Get("a"); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()

	if constructions != 1 {
		t.Fatalf("expected exactly one construction under concurrent first access, got %d", constructions)
	}
}

func TestRegistryGetSurfacesFactoryError(t *testing.T) {
	r := NewRegistry()
	if err := r.Discover("broken", func() (Plugin, error) {
		return nil, errors.New("contract violation")
	}); err != nil {
		t.Fatalf("discover: %v", err)
	}
	if _, err := r.Get("broken"); !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
}
