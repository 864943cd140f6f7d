package api

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salamenterprise/claims-askes/internal/pricing"
	"github.com/salamenterprise/claims-askes/internal/timeutil"
)

func TestApprovalSLAMonitor_RunNowDoesNotPanicOnEmptyStore(t *testing.T) {
	m := NewApprovalSLAMonitor(pricing.NewMemoryStore())
	m.RunNow()
}

func TestApprovalSLAMonitor_DetectsBreachedStep(t *testing.T) {
	store := pricing.NewMemoryStore()
	ctx := context.Background()

	cfg := &pricing.PolicyConfig{
		ID:          "cfg-1",
		CompanyName: "Acme Corp",
		Status:      pricing.StatusQuoted,
		CreatedAt:   timeutil.Today().AddDays(-10),
		Approvals: []pricing.ApprovalWorkflow{
			{StepName: "UNDERWRITING", StepOrder: 1, Status: pricing.StepPending},
		},
	}
	// require: the fixture must persist or the check below proves nothing
	require.NoError(t, store.Create(ctx, cfg))

	var logged bytes.Buffer
	log.SetOutput(&logged)
	defer log.SetOutput(os.Stderr)

	m := NewApprovalSLAMonitor(store)
	m.SLADays = 2
	m.RunNow()

	if !strings.Contains(logged.String(), "SLA breach: config=cfg-1 step=UNDERWRITING") {
		t.Errorf("expected an SLA breach logged for cfg-1/UNDERWRITING, got log output %q", logged.String())
	}
}

func TestApprovalSLAMonitor_StartStop(t *testing.T) {
	m := NewApprovalSLAMonitor(pricing.NewMemoryStore())
	m.CheckInterval = 1 // effectively instantaneous; exercises the ticker path
	m.Start()
	m.Stop()
}
