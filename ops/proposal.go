package ops

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/agentsdb/agentsdb/format"
	"github.com/agentsdb/agentsdb/layer"
	"github.com/agentsdb/agentsdb/layerfs"
)

// ProposalStatus is the folded state of a proposal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

// proposalEvent is the on-disk JSON shape of a meta.proposal_event chunk's
// content. action names the event (propose, accept or reject; an empty
// action is read as propose). A propose event carries no proposal_id of
// its own (the chunk id that holds it is the proposal id); accept/reject
// events carry proposal_id pointing back at it.
type proposalEvent struct {
	Action      string `json:"action,omitempty"`
	ProposalID  format.ChunkID `json:"proposal_id,omitempty"`
	ContextID   format.ChunkID `json:"context_id"`
	FromPath    string `json:"from_path,omitempty"`
	ToPath      string `json:"to_path,omitempty"`
	CreatedAtMs uint64 `json:"created_at_unix_ms,omitempty"`

	Title string `json:"title,omitempty"`
	Why   string `json:"why,omitempty"`
	What  string `json:"what,omitempty"`
	Where string `json:"where,omitempty"`

	Actor  string `json:"actor,omitempty"`
	Reason string `json:"reason,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

// Proposal is the folded state of a proposal event chain.
type Proposal struct {
	ID          format.ChunkID
	ContextID   format.ChunkID
	FromPath    string
	ToPath      string
	Status      ProposalStatus
	CreatedAtMs uint64
	Title       string
	Why         string
	What        string
	Where       string

	DecidedAtMs    uint64
	DecidedBy      string
	DecisionReason string
	DecisionOutcome string
}

// ProposeRequest describes a new proposal.
type ProposeRequest struct {
	ContextID format.ChunkID
	FromPath  string
	ToPath    string
	Title     string
	Why       string
	What      string
	Where     string
	Author    format.Author
	CreatedAtMs uint64
}

// Propose appends a propose event to the proposals layer at path. The
// chunk id assigned to the event chunk is the proposal id.
func Propose(path string, scope layer.ID, req ProposeRequest) (format.ChunkID, error) {
	dim, err := resolveDim(path)
	if err != nil {
		return 0, err
	}
	fromPath := req.FromPath
	if fromPath == "" {
		fromPath = layerfs.Delta
	}
	toPath := req.ToPath
	if toPath == "" {
		toPath = layerfs.User
	}
	ev := proposalEvent{
		Action:      "propose",
		ContextID:   req.ContextID,
		FromPath:    fromPath,
		ToPath:      toPath,
		CreatedAtMs: req.CreatedAtMs,
		Title:       req.Title,
		Why:         req.Why,
		What:        req.What,
		Where:       req.Where,
	}
	content, err := json.Marshal(ev)
	if err != nil {
		return 0, err
	}
	ids, err := writeChunks(path, scope, false, false, []format.NewChunk{{
		Kind:        format.KindProposalEvent,
		Content:     string(content),
		Author:      req.Author,
		Confidence:  1,
		CreatedAtMs: req.CreatedAtMs,
		Embedding:   make([]float32, dim),
		Sources:     []format.Source{format.SourceChunk(req.ContextID)},
	}})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// DecideRequest records an accept or reject event against an existing
// proposal.
type DecideRequest struct {
	ProposalID  format.ChunkID
	Actor       string
	Reason      string
	Outcome     string
	CreatedAtMs uint64
	Author      format.Author
}

func decide(path string, scope layer.ID, action string, ctxID format.ChunkID, req DecideRequest) error {
	dim, err := resolveDim(path)
	if err != nil {
		return err
	}
	ev := proposalEvent{
		Action:      action,
		ProposalID:  req.ProposalID,
		ContextID:   ctxID,
		CreatedAtMs: req.CreatedAtMs,
		Actor:       req.Actor,
		Reason:      req.Reason,
		Outcome:     req.Outcome,
	}
	content, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = writeChunks(path, scope, false, false, []format.NewChunk{{
		Kind:        format.KindProposalEvent,
		Content:     string(content),
		Author:      req.Author,
		Confidence:  1,
		CreatedAtMs: req.CreatedAtMs,
		Embedding:   make([]float32, dim),
		Sources:     []format.Source{format.SourceChunk(req.ProposalID)},
	}})
	return err
}

// Accept promotes a pending proposal's context chunk from its source layer
// into its target layer, then records the acceptance event. Relative
// from/to paths stored in the proposal are resolved against path's
// directory. Accept refuses to target base scope — promotions into base
// must go through a full rebuild, not the proposal path.
func Accept(path string, scope layer.ID, req DecideRequest, fromScope, toScope layer.ID, skipExisting bool) (PromoteResult, error) {
	proposals, err := LoadProposals(path, scope)
	if err != nil {
		return PromoteResult{}, err
	}
	p, ok := proposals[req.ProposalID]
	if !ok {
		return PromoteResult{}, &ErrChunkNotFound{ID: req.ProposalID}
	}
	if p.Status != ProposalPending {
		return PromoteResult{}, &ErrProposalNotPending{ID: req.ProposalID, Status: p.Status}
	}
	if toScope == layer.Base {
		return PromoteResult{}, &ErrScopeNotWritable{Scope: layer.Base.String()}
	}

	fromPath, toPath := p.FromPath, p.ToPath
	if !filepath.IsAbs(fromPath) {
		fromPath = filepath.Join(filepath.Dir(path), fromPath)
	}
	if !filepath.IsAbs(toPath) {
		toPath = filepath.Join(filepath.Dir(path), toPath)
	}

	res, err := Promote(PromoteRequest{
		FromPath:     fromPath,
		FromScope:    fromScope,
		ToPath:       toPath,
		ToScope:      toScope,
		IDs:          []format.ChunkID{p.ContextID},
		SkipExisting: skipExisting,
	})
	if err != nil {
		return PromoteResult{}, err
	}

	outcome := "promoted"
	if len(res.Skipped) > 0 {
		outcome = "skipped_existing"
	}
	req.Outcome = outcome
	if err := decide(path, scope, "accept", p.ContextID, req); err != nil {
		return res, err
	}
	return res, nil
}

// Reject records a rejection event without touching any layer contents.
func Reject(path string, scope layer.ID, req DecideRequest) error {
	proposals, err := LoadProposals(path, scope)
	if err != nil {
		return err
	}
	p, ok := proposals[req.ProposalID]
	if !ok {
		return &ErrChunkNotFound{ID: req.ProposalID}
	}
	if p.Status != ProposalPending {
		return &ErrProposalNotPending{ID: req.ProposalID, Status: p.Status}
	}
	return decide(path, scope, "reject", p.ContextID, req)
}

// LoadProposals folds the full event history at path into current proposal
// state, keyed by proposal id (the chunk id of the originating propose
// event).
func LoadProposals(path string, scope layer.ID) (map[format.ChunkID]Proposal, error) {
	h, err := layer.Open(path, scope)
	if err != nil {
		if layerfs.Exists(path) {
			return nil, err
		}
		return map[format.ChunkID]Proposal{}, nil
	}
	defer h.Close()

	result := map[format.ChunkID]Proposal{}
	for i := 0; i < h.ChunkCount(); i++ {
		rec, ok := h.ChunkByIndex(i)
		if !ok {
			continue
		}
		kind, err := h.Kind(rec)
		if err != nil {
			return nil, err
		}
		if kind != format.KindProposalEvent {
			continue
		}
		content, err := h.Content(rec)
		if err != nil {
			return nil, err
		}
		var ev proposalEvent
		if err := json.Unmarshal([]byte(content), &ev); err != nil {
			return nil, fmt.Errorf("ops: decode proposal event %d: %w", rec.ID, err)
		}
		applyProposalEvent(result, rec.ID, ev)
	}
	return result, nil
}

func applyProposalEvent(result map[format.ChunkID]Proposal, eventID format.ChunkID, ev proposalEvent) {
	action := ev.Action
	if action == "" {
		action = "propose"
	}
	switch action {
	case "propose":
		fromPath := ev.FromPath
		if fromPath == "" {
			fromPath = layerfs.Delta
		}
		toPath := ev.ToPath
		if toPath == "" {
			toPath = layerfs.User
		}
		result[eventID] = Proposal{
			ID:          eventID,
			ContextID:   ev.ContextID,
			FromPath:    fromPath,
			ToPath:      toPath,
			Status:      ProposalPending,
			CreatedAtMs: ev.CreatedAtMs,
			Title:       ev.Title,
			Why:         ev.Why,
			What:        ev.What,
			Where:       ev.Where,
		}
	case "accept", "reject":
		p, ok := result[ev.ProposalID]
		if !ok {
			return
		}
		if action == "accept" {
			p.Status = ProposalAccepted
		} else {
			p.Status = ProposalRejected
		}
		p.DecidedAtMs = ev.CreatedAtMs
		p.DecidedBy = ev.Actor
		p.DecisionReason = ev.Reason
		p.DecisionOutcome = ev.Outcome
		result[ev.ProposalID] = p
	}
}

// ListPending returns pending proposals in ascending id order.
func ListPending(path string, scope layer.ID) ([]Proposal, error) {
	return filterProposals(path, scope, func(p Proposal) bool { return p.Status == ProposalPending })
}

// ListAll returns every proposal regardless of status, in ascending id
// order.
func ListAll(path string, scope layer.ID) ([]Proposal, error) {
	return filterProposals(path, scope, func(Proposal) bool { return true })
}

func filterProposals(path string, scope layer.ID, keep func(Proposal) bool) ([]Proposal, error) {
	all, err := LoadProposals(path, scope)
	if err != nil {
		return nil, err
	}
	out := make([]Proposal, 0, len(all))
	for _, p := range all {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
