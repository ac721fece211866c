package dsched_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscore/dsched"
	schedconfig "github.com/oscore/dsched/config"
	"github.com/oscore/dsched/runtime/policy"
)

func TestNewAppliesDefaultsAndBuildsRuntime(t *testing.T) {
	srv, err := dsched.New()
	require.NoError(t, err)
	require.NotNil(t, srv.Runtime())

	cpus := srv.Runtime().Core().Cpus()
	assert.Equal(t, []int{0, 1, 2, 3}, cpus)
}

func TestNewRejectsInvalidTopology(t *testing.T) {
	cfg := dsched.DefaultConfig()
	cfg.Topology.Cpus = "not-a-cpuset"

	_, err := dsched.New(dsched.WithConfig(cfg))
	require.Error(t, err)
}

func TestNewRejectsEmptyCpuset(t *testing.T) {
	cfg := dsched.DefaultConfig()
	cfg.Topology.Cpus = ""

	_, err := dsched.New(dsched.WithConfig(cfg))
	require.Error(t, err)
}

func TestNewInstallsConfiguredAffinityRules(t *testing.T) {
	cfg := dsched.DefaultConfig()
	cfg.Topology.Affinity = []schedconfig.AffinityRule{
		{Gtid: "g1", Mode: policy.ModePinned, AllowList: "2"},
		{Gtid: "g2", Mode: policy.ModeExcluded, BlockList: "0-1"},
	}

	srv, err := dsched.New(dsched.WithConfig(cfg))
	require.NoError(t, err)

	p := srv.Runtime().Core().Policy

	g1, ok := p.Lookup("g1")
	require.True(t, ok)
	assert.Equal(t, policy.ModePinned, g1.Mode)
	assert.Equal(t, []int{2}, g1.AllowList)

	g2, ok := p.Lookup("g2")
	require.True(t, ok)
	assert.Equal(t, policy.ModeExcluded, g2.Mode)
	assert.Equal(t, []int{0, 1}, g2.BlockList)
}

func TestNewRejectsMalformedAffinityCpuset(t *testing.T) {
	cfg := dsched.DefaultConfig()
	cfg.Topology.Affinity = []schedconfig.AffinityRule{
		{Gtid: "g1", Mode: policy.ModePinned, AllowList: "not-a-cpuset"},
	}

	_, err := dsched.New(dsched.WithConfig(cfg))
	require.Error(t, err)
}

func TestWithPolicyOverridesDefault(t *testing.T) {
	custom := policy.New()
	custom.SetRule("g1", policy.Affinity{Mode: policy.ModePinned, AllowList: []int{1}})

	srv, err := dsched.New(dsched.WithPolicy(custom))
	require.NoError(t, err)

	rule, ok := srv.Runtime().Core().Policy.Lookup("g1")
	require.True(t, ok)
	assert.Equal(t, []int{1}, rule.AllowList)
}
