package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/feyza/backend/internal/domain/trust"
)

func TestProjectActiveVouchMerges(t *testing.T) {
	client := NewMemoryClient()
	g := NewVouchGraph(client)
	err := g.ProjectVouch(context.Background(), trust.Vouch{
		ID: "v1", VoucherID: "a", VoucheeID: "b", Status: trust.VouchActive,
		VouchType: trust.VouchCharacter, Relationship: trust.RelationshipFriend, VouchStrength: 42,
	})
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	calls := client.WriteCalls()
	if len(calls) != 1 || !strings.Contains(calls[0].Query, "MERGE (a)-[r:VOUCHES") {
		t.Fatalf("expected one merge, got %+v", calls)
	}
	if calls[0].Params["strength"] != int64(42) || calls[0].Params["voucher_id"] != "a" {
		t.Fatalf("unexpected params: %+v", calls[0].Params)
	}
}

func TestProjectRevokedVouchRemovesEdge(t *testing.T) {
	client := NewMemoryClient()
	g := NewVouchGraph(client)
	if err := g.ProjectVouch(context.Background(), trust.Vouch{ID: "v1", Status: trust.VouchRevoked}); err != nil {
		t.Fatalf("project: %v", err)
	}
	calls := client.WriteCalls()
	if len(calls) != 1 || !strings.Contains(calls[0].Query, "DELETE r") {
		t.Fatalf("expected delete, got %+v", calls)
	}
}

func TestNetworkClampsDepthAndDecodes(t *testing.T) {
	client := NewMemoryClient()
	client.PushReadResult(Result{Records: []Record{
		{"vouch_id": "v1", "voucher_id": "a", "vouchee_id": "b", "strength": int64(55), "vouch_type": "financial", "relationship": "family"},
	}})
	g := NewVouchGraph(client)

	edges, err := g.Network(context.Background(), "a", 9)
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	if len(edges) != 1 || edges[0].Strength != 55 || edges[0].VoucheeID != "b" {
		t.Fatalf("unexpected edges: %+v", edges)
	}
	reads := client.ReadCalls()
	if len(reads) != 1 || !strings.Contains(reads[0].Query, "*1..3") {
		t.Fatalf("expected depth clamped to 3, got %q", reads[0].Query)
	}
}

func TestGraphErrorsAreWrapped(t *testing.T) {
	client := NewMemoryClient().WithError(errors.New("bolt down"))
	g := NewVouchGraph(client)
	if err := g.RemoveVouch(context.Background(), "v1"); err == nil || !strings.Contains(err.Error(), "v1") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if g.Ping(context.Background()) == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestNeo4jClientRequiresURI(t *testing.T) {
	if _, err := NewNeo4jClient(context.Background(), Options{}); !errors.Is(err, ErrMissingURI) {
		t.Fatalf("expected missing URI error, got %v", err)
	}
}
