package fuzzing

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"txschools-scraper/internal/components/telemetry"
)

// Target holds some state (a generated listing, a set of records) and exposes every way of
// changing it as a method:
//
// `Step*(ctx context.Context, res *Results) error`
//
// A path is a seeded sequence of steps picked at random. A step returns an error when a
// property of the system no longer holds, injected faults (a detail page that fails to load)
// are part of the state and are not errors on their own.
//
// An optional `OnEnd(ctx context.Context, res *Results)` runs once the path is over, it is the
// place for properties that only make sense on the final state.
type Target interface{}

func methodsOf(target Target) (steps []reflect.Method, onEnd reflect.Method) {
	t := reflect.TypeOf(target)
	ctxType := reflect.TypeOf((*context.Context)(nil)).Elem()
	resType := reflect.TypeOf(&Results{})
	errType := reflect.TypeOf((*error)(nil)).Elem()

	for i := 0; i < t.NumMethod(); i++ {
		method := t.Method(i)
		methodType := method.Type

		if methodType.NumIn() != 3 {
			continue
		}
		if methodType.In(1) != ctxType || methodType.In(2) != resType {
			continue
		}

		if method.Name == "OnEnd" {
			onEnd = method
			continue
		}

		if methodType.NumOut() != 1 || methodType.Out(0) != errType {
			continue
		}
		if !strings.HasPrefix(method.Name, "Step") {
			continue
		}

		steps = append(steps, method)
	}

	return steps, onEnd
}

// Results collects the violations of a single path.
type Results struct {
	failures []error
	steps    []string
}

func (r *Results) Fail(err error) {
	r.failures = append(r.failures, err)
}

func (r *Results) Failed() bool {
	return len(r.failures) > 0
}

func (r *Results) String() string {
	var out strings.Builder
	fmt.Fprintf(&out, "%d properties violated after %d steps\n", len(r.failures), len(r.steps))
	for _, err := range r.failures {
		fmt.Fprintf(&out, "  - %v\n", err)
	}
	fmt.Fprintf(&out, "steps: %s", strings.Join(r.steps, " -> "))
	return out.String()
}

type TargetProvider interface {
	CreateTarget(tel telemetry.API, rndm *rand.Rand) (Target, error)
}

// F explores the paths of the targets created by a provider.
type F struct {
	tel telemetry.API

	provider TargetProvider
	steps    []reflect.Method
	onEnd    reflect.Method

	minSteps uint64
	maxSteps uint64
	usePath  bool
	path     Path
}

// New inspects the provider's target for steps. A path with a positive step count makes
// StartFuzzTest replay only that path.
func New(
	tel telemetry.API,
	provider TargetProvider,
	minSteps, maxSteps uint64,
	path Path,
) (F, error) {
	if maxSteps < minSteps {
		return F{}, fmt.Errorf("max steps (%d) is less than min steps (%d)", maxSteps, minSteps)
	}

	f := F{
		tel:      telemetry.NewScopedAPI("fuzzer", tel),
		provider: provider,
		minSteps: minSteps,
		maxSteps: maxSteps,
		path:     path,
		usePath:  path.Steps > 0,
	}

	target, err := provider.CreateTarget(telemetry.NoopAPI{}, rand.New(rand.NewSource(0)))
	if err != nil {
		return F{}, err
	}
	f.steps, f.onEnd = methodsOf(target)
	if len(f.steps) == 0 {
		return F{}, fmt.Errorf("target %T has no steps", target)
	}

	return f, nil
}

func (f F) call(ctx context.Context, target Target, stepIdx int, results *Results) error {
	step := f.steps[stepIdx]
	outs := step.Func.Call([]reflect.Value{
		reflect.ValueOf(target),
		reflect.ValueOf(ctx),
		reflect.ValueOf(results),
	})
	val := outs[0].Interface()
	if val == nil {
		return nil
	}
	return val.(error)
}

func (f F) end(ctx context.Context, target Target, results *Results) {
	if !f.onEnd.Func.IsValid() {
		return
	}
	f.onEnd.Func.Call([]reflect.Value{
		reflect.ValueOf(target),
		reflect.ValueOf(ctx),
		reflect.ValueOf(results),
	})
}

// RunPath takes stepCount random steps on target, rndm must be the source the target was created with.
func (f F) RunPath(ctx context.Context, target Target, rndm *rand.Rand, stepCount int) (*Results, error) {
	results := &Results{}

	for i := 0; i < stepCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stepIdx := rndm.Intn(len(f.steps))
		results.steps = append(results.steps, f.steps[stepIdx].Name)

		err := f.call(ctx, target, stepIdx, results)
		if err != nil {
			results.Fail(fmt.Errorf("%s: %w", f.steps[stepIdx].Name, err))
		}
	}
	f.end(ctx, target, results)

	return results, nil
}

func (f F) stepCount(rndm *rand.Rand) int {
	spread := int(f.maxSteps - f.minSteps)
	if spread == 0 {
		return int(f.minSteps)
	}
	return int(f.minSteps) + rndm.Intn(spread)
}

// explore runs random paths until ctx is done or one of them violates a property.
func (f F) explore(ctx context.Context, cancel func(), count *uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		seed := rand.Int63()
		rndm := rand.New(rand.NewSource(seed))

		target, err := f.provider.CreateTarget(telemetry.NoopAPI{}, rndm)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			f.tel.ReportBroken("failed to setup fuzz target", "err", err)
			cancel()
			return
		}

		stepCount := f.stepCount(rndm)

		results, err := f.RunPath(ctx, target, rndm, stepCount)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			f.tel.ReportBroken("encountered fatal error", "err", err)
			cancel()
			return
		}

		atomic.AddUint64(count, 1)

		if !results.Failed() {
			continue
		}

		f.tel.ReportBroken(fmt.Sprintf("%s\nreplay with --path %s", results, Path{Seed: seed, Steps: int64(stepCount)}))
		cancel()
		return
	}
}

// replay runs the path given to New and reports the outcome.
func (f F) replay(ctx context.Context) {
	f.tel.ReportInfo("replaying fuzz path", "path", f.path.String())

	rndm := rand.New(rand.NewSource(f.path.Seed))
	target, err := f.provider.CreateTarget(f.tel, rndm)
	if err != nil {
		f.tel.ReportBroken("failed to setup fuzz target", "err", err)
		return
	}
	// explore draws the step count before taking any step
	f.stepCount(rndm)

	results, err := f.RunPath(ctx, target, rndm, int(f.path.Steps))
	if err != nil {
		f.tel.ReportBroken("encountered fatal error", "err", err)
		return
	}
	if results.Failed() {
		f.tel.ReportBroken(results.String())
		return
	}
	f.tel.ReportInfo("no properties violated", "steps", f.path.Steps)
}

// StartFuzzTest blocks until ctx is done or a path violates a property. Unless a path was given
// to New, every logical cpu explores paths of its own.
func (f F) StartFuzzTest(ctx context.Context) {
	if f.usePath {
		f.replay(ctx)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := telemetry.LogicalCPUs(ctx)
	f.tel.ReportDebug("exploring fuzz paths", "workers", workers)

	var count uint64
	for range workers {
		go f.explore(ctx, cancel, &count)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.tel.ReportCount("fuzzer.paths", int64(atomic.LoadUint64(&count)))
		}
	}
}

// Path identifies a fuzz path: the seed of the random source and how many steps were taken.
type Path struct {
	Seed  int64
	Steps int64
}

func (p Path) String() string {
	return fmt.Sprintf("%d:%d", p.Seed, p.Steps)
}

// ParsePath parses a path in the format "<seed>:<steps>".
func ParsePath(text string) (Path, error) {
	segments := strings.Split(text, ":")
	if len(segments) != 2 {
		return Path{}, fmt.Errorf("parse fuzz path: expected exactly one ':' in '%s'", text)
	}

	seed, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil {
		return Path{}, fmt.Errorf("parse fuzz path: %w", err)
	}
	steps, err := strconv.ParseInt(segments[1], 10, 64)
	if err != nil {
		return Path{}, fmt.Errorf("parse fuzz path: %w", err)
	}

	return Path{
		Seed:  seed,
		Steps: steps,
	}, nil
}
