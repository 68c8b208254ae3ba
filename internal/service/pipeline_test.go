package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/infra"
)

type recordingSink struct {
	got []domain.CostEstimate
	err error
}

func (s *recordingSink) Publish(_ context.Context, est domain.CostEstimate) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, est)
	return nil
}

func TestPipeline_Process(t *testing.T) {
	sink := &recordingSink{}
	m := &infra.Metrics{}
	p := NewPipeline(NewCostEstimator(defaultParams()), defaultIntent(), sink, m)

	p.Process(context.Background(), book("100", "101"), time.Now())

	if len(sink.got) != 1 {
		t.Fatalf("sink received %d estimates, want 1", len(sink.got))
	}
	if m.Snapshot().Estimates != 1 {
		t.Error("estimate not recorded in metrics")
	}
}

func TestPipeline_ContainsErrors(t *testing.T) {
	sink := &recordingSink{}
	m := &infra.Metrics{}
	p := NewPipeline(NewCostEstimator(defaultParams()), defaultIntent(), sink, m)

	bad := book("100", "101")
	bad.Bids = nil
	p.Process(context.Background(), bad, time.Now())
	p.Process(context.Background(), book("100", "101"), time.Now())

	if len(sink.got) != 1 {
		t.Fatalf("sink received %d estimates, want 1 (bad tick skipped)", len(sink.got))
	}
	snap := m.Snapshot()
	if snap.PipelineErrors != 1 || snap.Estimates != 1 {
		t.Errorf("errors/estimates = %d/%d, want 1/1", snap.PipelineErrors, snap.Estimates)
	}

	sink.err = errors.New("sink full")
	p.Process(context.Background(), book("100", "101"), time.Now())
	if m.Snapshot().SinkErrors != 1 {
		t.Error("sink error not recorded")
	}
}
