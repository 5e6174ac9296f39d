package service

import (
	"context"
	"strings"

	"github.com/ubongpr7/ngo-builder-f-sub004/internal/ledger/domain"
)

// StaticApprovalPolicy grants budget approval to a fixed set of identities,
// whatever the budget. An empty set grants nobody.
type StaticApprovalPolicy struct {
	approvers map[string]struct{}
}

func NewStaticApprovalPolicy(approvers []string) *StaticApprovalPolicy {
	p := &StaticApprovalPolicy{approvers: make(map[string]struct{}, len(approvers))}
	for _, a := range approvers {
		if a = strings.TrimSpace(a); a != "" {
			p.approvers[a] = struct{}{}
		}
	}
	return p
}

func (p *StaticApprovalPolicy) CanApproveBudget(_ context.Context, identity, _ string) (bool, error) {
	_, ok := p.approvers[strings.TrimSpace(identity)]
	return ok, nil
}

var _ domain.ApprovalPolicy = (*StaticApprovalPolicy)(nil)
