package session

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/sweagent/sweenv/pkg/events"
	"github.com/sweagent/sweenv/pkg/ledger"
	"github.com/sweagent/sweenv/pkg/log"
	"github.com/sweagent/sweenv/pkg/metrics"
	"github.com/sweagent/sweenv/pkg/shellbridge"
	"github.com/sweagent/sweenv/pkg/types"
)

var submissionRe = regexp.MustCompile(`(?s)<<SUBMISSION\|\|(.*)\|\|SUBMISSION>>`)

// Step dispatches one action and returns the resulting observation,
// recovering from the two failure classes the shell bridge surfaces: a
// timeout (interrupt and report) and a fatal bridge error (reset the
// container and report). All other errors are already captured as
// observation text by the dispatcher itself.
func (s *Session) Step(ctx context.Context, action, thought string) (types.StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := log.WithSessionID(s.id)
	now := time.Now()

	trimmed := strings.TrimSpace(action)
	if trimmed == "skip" {
		return s.finish(types.StepResult{
			Observation: "skipped",
			Done:        true,
			ExitStatus:  types.ExitStatusSkipped,
			Timestamp:   now,
		}, action)
	}
	if strings.HasPrefix(trimmed, "exit_") {
		patch, observation := s.submitLocked(ctx)
		return s.finish(types.StepResult{
			Observation: observation,
			Done:        true,
			ExitStatus:  types.ExitStatusSubmittedExit,
			Patch:       patch,
			Timestamp:   now,
		}, action)
	}

	observation, code, err := s.dispatchLocked(ctx, action)
	if err != nil {
		switch {
		case errors.Is(err, shellbridge.ErrShellTimeout):
			if ierr := s.bridge.Interrupt(ctx); ierr != nil {
				logger.Error().Err(ierr).Msg("interrupt after timeout failed, session corrupt")
				return s.finish(types.StepResult{
					Observation: "EXECUTION TIMED OUT and interrupt failed; session reset required",
					Done:        true,
					ExitStatus:  types.ExitStatusEarlyExit,
					Timestamp:   now,
				}, action)
			}
			return s.finish(types.StepResult{
				Observation: "EXECUTION TIMED OUT: runaway process interrupted, shell still usable",
				Done:        false,
				Timestamp:   now,
			}, action)

		case errors.Is(err, shellbridge.ErrShellFatal):
			logger.Error().Err(err).Msg("shell bridge fatal, resetting container")
			if s.task != nil {
				task := s.task
				if s.stdinPipe != nil {
					_ = s.stdinPipe.Close()
				}
				if err := s.rt.Stop(ctx, s.handle, s.cfg.StopTimeout); err != nil {
					logger.Warn().Err(err).Msg("stop container after fatal bridge error failed")
				}
				s.handle = types.ContainerHandle{}
				metrics.SessionsActive.Dec()
				s.mu.Unlock()
				resetErr := s.Reset(ctx, task)
				s.mu.Lock()
				if resetErr != nil {
					logger.Error().Err(resetErr).Msg("container reset after fatal bridge error failed")
				}
			}
			return s.finish(types.StepResult{
				Observation: "shell bridge failed fatally; container has been reset: " + err.Error(),
				Done:        true,
				ExitStatus:  types.ExitStatusEarlyExit,
				Timestamp:   now,
			}, action)

		default:
			return s.finish(types.StepResult{
				Observation: err.Error(),
				Done:        false,
				ReturnCode:  code,
				Timestamp:   now,
			}, action)
		}
	}

	if m := submissionRe.FindStringSubmatch(observation); m != nil {
		return s.finish(types.StepResult{
			Observation: observation,
			Done:        true,
			ExitStatus:  types.ExitStatusSubmitted,
			Patch:       m[1],
			ReturnCode:  code,
			Timestamp:   now,
		}, action)
	}

	return s.finish(types.StepResult{
		Observation: observation,
		Done:        false,
		ReturnCode:  code,
		Timestamp:   now,
	}, action)
}

// dispatchLocked runs the action through the dispatcher. Only raw-shell,
// get_cwd and submit actions can return a bridge error (timeout/fatal);
// every other verb converts its own errors to observation text already.
func (s *Session) dispatchLocked(ctx context.Context, action string) (string, int, error) {
	obs, err := s.disp.Dispatch(ctx, s.cwd, action)
	return obs, 0, err
}

func (s *Session) submitLocked(ctx context.Context) (patch string, observation string) {
	obs, err := s.disp.Dispatch(ctx, s.cwd, "submit")
	if err != nil {
		return "", "submit failed: " + err.Error()
	}
	if m := submissionRe.FindStringSubmatch(obs); m != nil {
		return m[1], obs
	}
	return "", obs
}

// finish records the step to the ledger and publishes an event, in that
// order, so a subscriber never observes a step the ledger doesn't have
// yet.
func (s *Session) finish(result types.StepResult, rawAction string) (types.StepResult, error) {
	if s.store != nil {
		_, err := s.store.RecordStep(s.id, ledger.Step{
			SessionID:   s.id,
			Action:      rawAction,
			Observation: result.Observation,
			ReturnCode:  result.ReturnCode,
			ExitStatus:  string(result.ExitStatus),
			Timestamp:   result.Timestamp,
		})
		if err != nil {
			log.WithSessionID(s.id).Warn().Err(err).Msg("record step failed")
		}
	}
	s.publish(events.EventActionDispatched, rawAction, map[string]string{"exit_status": string(result.ExitStatus)})
	return result, nil
}
