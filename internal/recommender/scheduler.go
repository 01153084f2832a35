package recommender

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cinematch/backend/internal/errors"
	"github.com/cinematch/backend/internal/logger"
	"github.com/cinematch/backend/internal/metrics"
	"github.com/cinematch/backend/internal/models"
)

// ModelSet is one immutable generation of trained models. Serving code reads
// whichever generation the scheduler last published; a rebuild assembles a
// complete new set off to the side and swaps it in atomically, so no request
// ever sees a half-trained model.
type ModelSet struct {
	Latent     *LatentFactorModel
	ItemCF     *ItemCFModel
	Embeddings *EmbeddingIndex
	BuiltAt    time.Time
}

// Scheduler owns the model lifecycle: it counts new ratings, triggers a
// rebuild once cfg.UpdateThreshold accumulate, and publishes the result.
// Failed rebuilds keep the previous generation serving.
type Scheduler struct {
	store *Store
	cfg   Config

	current    atomic.Pointer[ModelSet]
	newRatings atomic.Int64
	lastBuild  atomic.Int64 // unix seconds

	rebuildMu sync.Mutex // one rebuild at a time
}

// NewScheduler constructs a scheduler. Call Bootstrap before serving.
func NewScheduler(store *Store, cfg Config) *Scheduler {
	return &Scheduler{store: store, cfg: cfg}
}

// Current returns the serving model set, or nil before the first successful
// build. Callers must handle nil by falling back to non-model strategies.
func (s *Scheduler) Current() *ModelSet {
	return s.current.Load()
}

// Bootstrap performs the startup full build. Insufficient data is not an
// error at this stage: the service starts with cold-start strategies only
// and the first threshold crossing builds the models.
func (s *Scheduler) Bootstrap() error {
	err := s.rebuild(models.UpdateTypeFullRetrain, models.TriggerStartup)
	if errors.IsInsufficientData(err) {
		logger.Warn("model bootstrap skipped: not enough ratings yet")
		return nil
	}
	return err
}

// NoteNewRating is called on every rating write. Crossing the threshold
// launches an asynchronous full rebuild; the write path never blocks on
// training.
func (s *Scheduler) NoteNewRating() {
	n := s.newRatings.Add(1)
	if n < int64(s.cfg.UpdateThreshold) {
		return
	}
	if !s.newRatings.CompareAndSwap(n, 0) {
		return // another writer got the trigger
	}
	go func() {
		if err := s.rebuild(models.UpdateTypeFullRetrain, models.TriggerThreshold); err != nil {
			logger.ErrorWithFields("threshold rebuild failed", err)
		}
	}()
}

// ForceUpdate triggers a rebuild immediately. updateType is either
// models.UpdateTypeFullRetrain or models.UpdateTypeWarmStart; anything else
// is rejected.
func (s *Scheduler) ForceUpdate(updateType string) error {
	switch updateType {
	case models.UpdateTypeFullRetrain:
		s.newRatings.Store(0)
		return s.rebuild(models.UpdateTypeFullRetrain, models.TriggerManual)
	case models.UpdateTypeWarmStart:
		s.newRatings.Store(0)
		return s.rebuild(models.UpdateTypeWarmStart, models.TriggerManual)
	default:
		return errors.ValidationError("update_type", "must be full_retrain or warm_start")
	}
}

// PendingRatings reports how many ratings have accumulated toward the next
// threshold rebuild.
func (s *Scheduler) PendingRatings() int64 {
	return s.newRatings.Load()
}

func (s *Scheduler) rebuild(updateType, trigger string) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	start := time.Now()
	seed := start.UnixNano()

	var (
		next      *ModelSet
		processed int
		err       error
	)
	if updateType == models.UpdateTypeWarmStart && s.current.Load() != nil {
		next, processed, err = s.warmStart(seed)
	} else {
		updateType = models.UpdateTypeFullRetrain
		next, processed, err = s.fullRetrain(seed)
	}
	duration := time.Since(start)

	entry := &models.ModelUpdateLog{
		ModelType:        models.ModelTypeLatentFactor,
		UpdateType:       updateType,
		Trigger:          trigger,
		RatingsProcessed: processed,
		DurationSeconds:  duration.Seconds(),
		Success:          err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Metrics = map[string]float64{
			"explained_variance": next.Latent.ExplainedVariance(),
			"item_pairs":         float64(next.ItemCF.PairCount()),
			"indexed_embeddings": float64(next.Embeddings.Size()),
		}
	}
	if logErr := s.store.LogModelUpdate(entry); logErr != nil {
		logger.ErrorWithFields("failed to record model update", logErr)
	}

	if err != nil {
		metrics.RecordModelRebuild(updateType, trigger, false, duration)
		return err
	}

	s.current.Store(next)
	s.lastBuild.Store(next.BuiltAt.Unix())
	metrics.RecordModelRebuild(updateType, trigger, true, duration)
	logger.Log.Info("model set published",
		zap.String("update_type", updateType),
		zap.String("trigger", trigger),
		zap.Int("ratings", processed),
		zap.Float64("explained_variance", next.Latent.ExplainedVariance()),
		zap.Duration("duration", duration))
	return nil
}

func (s *Scheduler) fullRetrain(seed int64) (*ModelSet, int, error) {
	ratings, err := s.store.AllTrainingRatings(s.cfg)
	if err != nil {
		return nil, 0, errors.ModelBuild(err)
	}

	latent, err := TrainLatentFactor(ratings, s.cfg, seed)
	if err != nil {
		return nil, len(ratings), err
	}
	itemCF, err := TrainItemCF(ratings, s.cfg)
	if err != nil {
		return nil, len(ratings), err
	}

	movies, err := s.store.AllMovies()
	if err != nil {
		return nil, len(ratings), errors.ModelBuild(err)
	}

	return &ModelSet{
		Latent:     latent,
		ItemCF:     itemCF,
		Embeddings: NewEmbeddingIndex(movies),
		BuiltAt:    time.Now(),
	}, len(ratings), nil
}

// warmStart folds ratings newer than the current generation into the latent
// model without random reinitialization. The item similarity matrix has no
// incremental form, so it is recomputed in full; the embedding index is
// refreshed to pick up catalog changes.
func (s *Scheduler) warmStart(seed int64) (*ModelSet, int, error) {
	prev := s.current.Load()
	since := time.Unix(s.lastBuild.Load(), 0)

	newRatings, err := s.store.RatingsSince(since)
	if err != nil {
		return nil, 0, errors.ModelBuild(err)
	}

	latent, err := prev.Latent.WarmStart(newRatings, s.cfg, seed)
	if err != nil {
		return nil, len(newRatings), err
	}

	allRatings, err := s.store.AllTrainingRatings(s.cfg)
	if err != nil {
		return nil, len(newRatings), errors.ModelBuild(err)
	}
	itemCF, err := TrainItemCF(allRatings, s.cfg)
	if err != nil {
		return nil, len(newRatings), err
	}

	movies, err := s.store.AllMovies()
	if err != nil {
		return nil, len(newRatings), errors.ModelBuild(err)
	}

	return &ModelSet{
		Latent:     latent,
		ItemCF:     itemCF,
		Embeddings: NewEmbeddingIndex(movies),
		BuiltAt:    time.Now(),
	}, len(newRatings), nil
}
