package dsched

import (
	"fmt"

	"github.com/oscore/dsched/config/cpuset"
	"github.com/oscore/dsched/runtime/agent"
	"github.com/oscore/dsched/runtime/core"
	"github.com/oscore/dsched/runtime/policy"
	"github.com/oscore/dsched/service/alloc"
	"github.com/oscore/dsched/service/channel"
	memchan "github.com/oscore/dsched/service/channel/memory"
	"github.com/oscore/dsched/service/topo"
	memtopo "github.com/oscore/dsched/service/topo/memory"
)

// Service is the scheduler façade: it wires a Config into a runtime/core.Core
// and one runtime/agent.Agent per managed CPU, then exposes them through
// Runtime.
type Service struct {
	config         *Config
	enclave        topo.Enclave
	policy         *policy.Policy
	channelFactory func(cpu int) channel.Channel

	runtime *Runtime
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()

	if err := s.config.Validate(); err != nil {
		return err
	}

	cpus, err := s.config.Topology.Cpuset()
	if err != nil {
		return fmt.Errorf("dsched: invalid topology: %w", err)
	}
	if len(cpus) == 0 {
		return fmt.Errorf("dsched: topology names no CPUs")
	}

	if err := s.installAffinityRules(); err != nil {
		return err
	}

	allocator := alloc.New()
	c := core.New(cpus, s.enclave, allocator, s.config.Topology.Slice(), s.channelFactory)
	c.Policy = s.policy

	agents := make(map[int]*agent.Agent, len(cpus))
	for _, cpu := range cpus {
		agents[cpu] = agent.New(c, cpu, s.config.Topology.DumpInterval(), s.config.Topology.DumpURL)
	}

	s.runtime = &Runtime{core: c, agents: agents}
	return nil
}

// ensureBaseSetup fills in everything an Option didn't, the way the
// teacher's Service.ensureBaseSetup wires default DAOs and a default queue.
func (s *Service) ensureBaseSetup() {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.policy == nil {
		s.policy = policy.New()
	}
	if s.enclave == nil {
		if cpus, err := s.config.Topology.Cpuset(); err == nil {
			s.enclave = memtopo.New(cpus)
		}
	}
	if s.channelFactory == nil {
		queueConfig := memchan.Config{QueueBuffer: s.config.Topology.QueueDepth}
		s.channelFactory = func(cpu int) channel.Channel {
			return memchan.New(queueConfig)
		}
	}
}

// installAffinityRules parses the configured AffinityRule entries into
// runtime/policy.Affinity rules.
func (s *Service) installAffinityRules() error {
	for _, rule := range s.config.Topology.Affinity {
		affinity := policy.Affinity{Mode: rule.Mode}
		if rule.AllowList != "" {
			allow, err := cpuset.Parse(rule.AllowList)
			if err != nil {
				return fmt.Errorf("dsched: affinity rule %q allowList: %w", rule.Gtid, err)
			}
			affinity.AllowList = allow
		}
		if rule.BlockList != "" {
			block, err := cpuset.Parse(rule.BlockList)
			if err != nil {
				return fmt.Errorf("dsched: affinity rule %q blockList: %w", rule.Gtid, err)
			}
			affinity.BlockList = block
		}
		s.policy.SetRule(rule.Gtid, affinity)
	}
	return nil
}

// Runtime returns the Service's Runtime handle.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// New builds a Service from the supplied options.
func New(options ...Option) (*Service, error) {
	s := &Service{}
	if err := s.init(options); err != nil {
		return nil, err
	}
	return s, nil
}
