package graph

import (
	"context"
	"fmt"

	"github.com/feyza/backend/internal/domain/trust"
)

const (
	DefaultNetworkDepth = 2
	MaxNetworkDepth     = 3
	networkEdgeLimit    = 500
)

const upsertVouchCypher = `
MERGE (a:User {id: $voucher_id})
MERGE (b:User {id: $vouchee_id})
MERGE (a)-[r:VOUCHES {id: $vouch_id}]->(b)
SET r.strength = $strength,
    r.vouch_type = $vouch_type,
    r.relationship = $relationship,
    r.status = $status`

const removeVouchCypher = `MATCH ()-[r:VOUCHES {id: $vouch_id}]->() DELETE r`

// Edge is one active vouch in a user's network.
type Edge struct {
	VouchID      string `json:"vouch_id"`
	VoucherID    string `json:"voucher_id"`
	VoucheeID    string `json:"vouchee_id"`
	Strength     int    `json:"strength"`
	VouchType    string `json:"vouch_type"`
	Relationship string `json:"relationship"`
}

// VouchGraph mirrors vouch rows into the graph. Postgres stays the source of
// truth; the graph only answers multi-hop reads.
type VouchGraph struct {
	client Client
}

func NewVouchGraph(client Client) *VouchGraph {
	return &VouchGraph{client: client}
}

func (g *VouchGraph) ProjectVouch(ctx context.Context, v trust.Vouch) error {
	if v.Status != trust.VouchActive {
		return g.RemoveVouch(ctx, v.ID)
	}
	_, err := g.client.ExecuteWrite(ctx, upsertVouchCypher, map[string]any{
		"vouch_id":     v.ID,
		"voucher_id":   v.VoucherID,
		"vouchee_id":   v.VoucheeID,
		"strength":     int64(v.VouchStrength),
		"vouch_type":   string(v.VouchType),
		"relationship": string(v.Relationship),
		"status":       string(v.Status),
	})
	if err != nil {
		return fmt.Errorf("project vouch %s: %w", v.ID, err)
	}
	return nil
}

func (g *VouchGraph) RemoveVouch(ctx context.Context, vouchID string) error {
	if _, err := g.client.ExecuteWrite(ctx, removeVouchCypher, map[string]any{"vouch_id": vouchID}); err != nil {
		return fmt.Errorf("remove vouch %s: %w", vouchID, err)
	}
	return nil
}

// Network returns the distinct vouch edges reachable from userID within depth
// hops in either direction.
func (g *VouchGraph) Network(ctx context.Context, userID string, depth int) ([]Edge, error) {
	if depth <= 0 {
		depth = DefaultNetworkDepth
	}
	if depth > MaxNetworkDepth {
		depth = MaxNetworkDepth
	}
	// Variable-length bounds cannot be parameters; depth is clamped above.
	cypher := fmt.Sprintf(`
MATCH p = (u:User {id: $user_id})-[:VOUCHES*1..%d]-(:User)
UNWIND relationships(p) AS r
WITH DISTINCT r
RETURN r.id AS vouch_id, startNode(r).id AS voucher_id, endNode(r).id AS vouchee_id,
       r.strength AS strength, r.vouch_type AS vouch_type, r.relationship AS relationship
LIMIT $limit`, depth)

	res, err := g.client.ExecuteRead(ctx, cypher, map[string]any{"user_id": userID, "limit": int64(networkEdgeLimit)})
	if err != nil {
		return nil, fmt.Errorf("vouch network for %s: %w", userID, err)
	}
	edges := make([]Edge, 0, len(res.Records))
	for _, rec := range res.Records {
		edges = append(edges, Edge{
			VouchID:      asString(rec["vouch_id"]),
			VoucherID:    asString(rec["voucher_id"]),
			VoucheeID:    asString(rec["vouchee_id"]),
			Strength:     asInt(rec["strength"]),
			VouchType:    asString(rec["vouch_type"]),
			Relationship: asString(rec["relationship"]),
		})
	}
	return edges, nil
}

func (g *VouchGraph) Ping(ctx context.Context) error {
	return g.client.VerifyConnectivity(ctx)
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
