// Package prover implements the bounded-parallelism proof-generation service
// described in spec.md §4.7 (C11): witnesses are submitted keyed by DA block
// hash, proving runs in the background up to num_threads at a time, and a
// caller polls for completion.
//
// Grounded on original_source/full-node/sov-stf-runner/src/prover_service/parallel/prover_manager.rs's
// ProverState (WitnessSubmitted/ProvingInProgress/Proved/Err keyed by slot
// hash, pending_tasks_count bounded admission) and core/zkp_node.go's
// RWMutex-guarded proof map, generalized from a flat map[string][]byte into
// the full state machine the original source models.
package prover

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/sovereign-rollup/core/internal/witness"
	"github.com/sovereign-rollup/core/pkg/types"
	"github.com/sovereign-rollup/core/pkg/zkvm"
)

var (
	// ErrUnknownJob is returned when a hash has no submitted witness.
	ErrUnknownJob = errors.New("prover: no witness submitted for this hash")
	// ErrAlreadyProving is returned by StartProving when the job is already running.
	ErrAlreadyProving = errors.New("prover: proof generation already in progress")
	// ErrAlreadyDone is returned by StartProving once a proof exists or failed.
	ErrAlreadyDone = errors.New("prover: proof already generated for this hash")
	// ErrProvingNotStarted is returned by ProofStatus before StartProving has run.
	ErrProvingNotStarted = errors.New("prover: proving has not been started for this hash")
)

var pendingTasksGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "rollup",
	Subsystem: "prover",
	Name:      "pending_tasks",
	Help:      "Number of proof-generation jobs currently running.",
})

func init() {
	prometheus.MustRegister(pendingTasksGauge)
}

// status is the ProverState enum from the source: a witness progresses
// WitnessSubmitted -> ProvingInProgress -> {Proved, Err}.
type status int

const (
	statusWitnessSubmitted status = iota
	statusProvingInProgress
	statusProved
	statusErr
)

// WitnessSubmissionStatus is returned by SubmitWitness.
type WitnessSubmissionStatus int

const (
	// SubmittedForProving means the witness was accepted as a new job.
	SubmittedForProving WitnessSubmissionStatus = iota
	// WitnessExist means a job for this hash already existed; the new
	// witness was not stored.
	WitnessExist
)

// StartProvingResult is returned by StartProving.
type StartProvingResult int

const (
	// ProvingStarted means a worker goroutine was dispatched.
	ProvingStarted StartProvingResult = iota
	// ProvingBusy means every admission slot is occupied; the caller should
	// retry start_proving later for this hash.
	ProvingBusy
)

// ProofSubmissionStatus is returned by ProofStatus.
type ProofSubmissionStatus int

const (
	// ProofGenerationInProgress means the job hasn't finished yet.
	ProofGenerationInProgress ProofSubmissionStatus = iota
	// ProofSuccess means a proof is ready; ProofStatus also removes the job.
	ProofSuccess
)

// StateTransitionData is what a witness submission carries: the slot's
// pre/post state roots, the DA block it was read from, and the recorded
// witness the zkVM replays against.
type StateTransitionData struct {
	DABlockHash       types.Hash
	DABlockHeight     uint64
	PreStateRoot      types.Hash
	PostStateRoot     types.Hash
	RewardedAddress   types.Address
	ValidityCondition []byte
	Witness           *witness.Witness
}

type job struct {
	id     string
	data   StateTransitionData
	status status
	proof  zkvm.Proof
	err    error
}

// Service runs proof generation jobs keyed by DA block hash, admitting at
// most numThreads concurrent jobs.
type Service struct {
	mu          sync.Mutex
	jobs        map[types.Hash]*job
	sem         *semaphore.Weighted
	hostFactory func() zkvm.Host
	log         *logrus.Entry
}

// New returns a Service that drives proof generation via hostFactory (called
// once per job, so each job gets an independent zkVM host instance),
// admitting at most numThreads concurrent jobs.
func New(numThreads int, hostFactory func() zkvm.Host, log *logrus.Logger) *Service {
	if numThreads <= 0 {
		numThreads = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		jobs:        make(map[types.Hash]*job),
		sem:         semaphore.NewWeighted(int64(numThreads)),
		hostFactory: hostFactory,
		log:         log.WithField("component", "prover"),
	}
}

// SubmitWitness registers data's witness against data.DABlockHash. A second
// submission for an already-known hash is a no-op that reports WitnessExist,
// mirroring the source's submit_witness Entry-based dedup.
func (s *Service) SubmitWitness(data StateTransitionData) WitnessSubmissionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[data.DABlockHash]; exists {
		return WitnessExist
	}
	s.jobs[data.DABlockHash] = &job{
		id:     uuid.NewString(),
		data:   data,
		status: statusWitnessSubmitted,
	}
	return SubmittedForProving
}

// StartProving dispatches a worker goroutine for hash's previously submitted
// witness, running the zkVM host in mode. It returns ProvingBusy without
// error if every admission slot is currently occupied by another job.
func (s *Service) StartProving(hash types.Hash, mode zkvm.Mode) (StartProvingResult, error) {
	s.mu.Lock()
	j, ok := s.jobs[hash]
	if !ok {
		s.mu.Unlock()
		return 0, ErrUnknownJob
	}
	switch j.status {
	case statusProvingInProgress:
		s.mu.Unlock()
		return 0, ErrAlreadyProving
	case statusProved, statusErr:
		s.mu.Unlock()
		return 0, ErrAlreadyDone
	}
	if !s.sem.TryAcquire(1) {
		s.mu.Unlock()
		return ProvingBusy, nil
	}
	j.status = statusProvingInProgress
	data := j.data
	s.mu.Unlock()

	pendingTasksGauge.Inc()
	s.log.WithFields(logrus.Fields{"job": j.id, "da_hash": hash.String(), "mode": mode.String()}).Info("proving started")

	go func() {
		proof, err := s.run(mode, data)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.sem.Release(1)
		pendingTasksGauge.Dec()
		if err != nil {
			j.status = statusErr
			j.err = err
			s.log.WithFields(logrus.Fields{"job": j.id, "da_hash": hash.String()}).WithError(err).Error("proving failed")
			return
		}
		j.status = statusProved
		j.proof = proof
		s.log.WithFields(logrus.Fields{"job": j.id, "da_hash": hash.String()}).Info("proving finished")
	}()
	return ProvingStarted, nil
}

// run drives the zkVM host for one job. The host only ever sees a single
// hint: the JSON-encoded witness, matching spec.md §4.7 step 1 ("feeds the
// witness into the zkVM host as a hint" — singular).
func (s *Service) run(mode zkvm.Mode, data StateTransitionData) (zkvm.Proof, error) {
	output := zkvm.StateTransition{
		InitialStateRoot:  data.PreStateRoot,
		FinalStateRoot:    data.PostStateRoot,
		SlotHash:          data.DABlockHash,
		RewardedAddress:   data.RewardedAddress,
		ValidityCondition: data.ValidityCondition,
	}

	if mode == zkvm.ModeSkip {
		return zkvm.Proof{Output: output}, nil
	}

	host := s.hostFactory()
	encoded, err := json.Marshal(data.Witness)
	if err != nil {
		return zkvm.Proof{}, fmt.Errorf("prover: encode witness hint: %w", err)
	}
	host.AddHint(encoded)

	if mode == zkvm.ModeSimulate {
		g := host.SimulateWithHints()
		for {
			if _, err := g.ReadHint(); err != nil {
				break
			}
		}
		return zkvm.Proof{Output: output}, nil
	}

	proof, err := host.Run(mode == zkvm.ModeProver)
	if err != nil {
		return zkvm.Proof{}, fmt.Errorf("prover: host run: %w", err)
	}
	proof.Output = output
	return proof, nil
}

// ProofStatus reports whether hash's job has finished. On ProofSuccess the
// job is removed so a later DA hash reuse (which shouldn't happen, but spec.md
// §3's invariant I6 only forbids two successful proofs, not resubmission
// after cleanup) starts fresh.
func (s *Service) ProofStatus(hash types.Hash) (ProofSubmissionStatus, zkvm.Proof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[hash]
	if !ok {
		return 0, zkvm.Proof{}, ErrUnknownJob
	}
	switch j.status {
	case statusWitnessSubmitted:
		return 0, zkvm.Proof{}, ErrProvingNotStarted
	case statusProvingInProgress:
		return ProofGenerationInProgress, zkvm.Proof{}, nil
	case statusErr:
		return 0, zkvm.Proof{}, j.err
	default: // statusProved
		proof := j.proof
		delete(s.jobs, hash)
		return ProofSuccess, proof, nil
	}
}
