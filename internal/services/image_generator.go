package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/marketeam/adpilot/internal/config"
	"github.com/marketeam/adpilot/internal/imagegen"
	"github.com/marketeam/adpilot/pkg/models"
)

// ImageGenerator drives the external image API for the pipeline: submit,
// then either take the inline result or poll the task until a terminal
// status or the attempt budget runs out. A nil provider client means the
// capability is disabled and Generate returns (nil, nil).
type ImageGenerator struct {
	client          *imagegen.Client
	pollInterval    time.Duration
	maxPollAttempts int
	maxConcurrency  int
	logger          *logrus.Logger
}

// GenerationSpec is one entry of a GenerateMany batch.
type GenerationSpec struct {
	Prompt         string
	Width          int
	Height         int
	ReferenceImage string
}

func NewImageGenerator(client *imagegen.Client, cfg config.ImageGenConfig, maxConcurrency int, logger *logrus.Logger) *ImageGenerator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	maxAttempts := cfg.MaxPollAttempts
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &ImageGenerator{
		client:          client,
		pollInterval:    pollInterval,
		maxPollAttempts: maxAttempts,
		maxConcurrency:  maxConcurrency,
		logger:          logger,
	}
}

// Enabled reports whether an image provider is configured.
func (g *ImageGenerator) Enabled() bool {
	return g.client != nil
}

// Generate runs one image request to completion. Provider failures and poll
// timeouts come back as a GeneratedImage with the matching status, never as
// an error; the only error Generate returns is context cancellation.
func (g *ImageGenerator) Generate(
	ctx context.Context,
	prompt string,
	subjectKey string,
	width, height int,
	referenceImage string,
) (*models.GeneratedImage, error) {
	if g.client == nil {
		g.logger.WithField("subject", subjectKey).Warn("Image generation skipped, no provider configured")
		return nil, nil
	}

	image := &models.GeneratedImage{
		SubjectKey: subjectKey,
		PromptUsed: prompt,
		Dimensions: models.ImageDimensions{Width: width, Height: height},
	}

	submitted, err := g.client.Submit(ctx, imagegen.GenerationRequest{
		Prompt:         prompt,
		Width:          width,
		Height:         height,
		ReferenceImage: referenceImage,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.WithError(err).WithField("subject", subjectKey).Error("Image submission failed")
		image.Status = models.ImageFailed
		return image, nil
	}

	if submitted.Inline {
		if submitted.SampleURL == "" {
			image.Status = models.ImageFailed
			return image, nil
		}
		image.ImageURL = submitted.SampleURL
		image.Status = models.ImageGenerated
		g.logger.WithField("subject", subjectKey).Info("Image generated")
		return image, nil
	}

	return g.poll(ctx, submitted.PollingURL, image)
}

// poll runs the bounded polling loop: fixed interval, fixed attempt budget,
// case-insensitive status handling. Exhausting the budget is a timeout
// result, not an error.
func (g *ImageGenerator) poll(ctx context.Context, pollingURL string, image *models.GeneratedImage) (*models.GeneratedImage, error) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= g.maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		result, err := g.client.Poll(ctx, pollingURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.logger.WithError(err).WithField("subject", image.SubjectKey).Error("Polling failed")
			image.Status = models.ImageFailed
			return image, nil
		}

		switch strings.ToLower(result.Status) {
		case "ready":
			if result.SampleURL == "" {
				image.Status = models.ImageFailed
				return image, nil
			}
			image.ImageURL = result.SampleURL
			image.Status = models.ImageGenerated
			g.logger.WithFields(logrus.Fields{
				"subject":  image.SubjectKey,
				"attempts": attempt,
			}).Info("Image generated")
			return image, nil
		case "error", "failed", "request_moderated":
			g.logger.WithFields(logrus.Fields{
				"subject": image.SubjectKey,
				"status":  result.Status,
			}).Error("Image generation ended in terminal failure")
			image.Status = models.ImageFailed
			return image, nil
		default:
			if attempt%10 == 0 {
				g.logger.WithFields(logrus.Fields{
					"subject": image.SubjectKey,
					"status":  result.Status,
					"attempt": attempt,
				}).Info("Still waiting for image")
			}
		}
	}

	g.logger.WithField("subject", image.SubjectKey).Warn("Image generation timed out")
	image.Status = models.ImageTimeout
	return image, nil
}

// GenerateMany runs a batch of generation requests concurrently with a
// bounded worker limit. One task's failure never aborts the batch; keys
// whose task produced nothing are simply absent from the result map.
// Aggregation downstream is keyed, so completion order is irrelevant.
func (g *ImageGenerator) GenerateMany(ctx context.Context, specs map[string]GenerationSpec) map[string]*models.GeneratedImage {
	results := make(map[string]*models.GeneratedImage, len(specs))
	if len(specs) == 0 {
		return results
	}

	var mu sync.Mutex
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(g.maxConcurrency)

	for key, spec := range specs {
		grp.Go(func() error {
			image, err := g.Generate(grpCtx, spec.Prompt, key, spec.Width, spec.Height, spec.ReferenceImage)
			if err != nil {
				g.logger.WithError(err).WithField("subject", key).Warn("Image task aborted")
				return nil
			}
			if image == nil {
				return nil
			}
			mu.Lock()
			results[key] = image
			mu.Unlock()
			return nil
		})
	}

	_ = grp.Wait()
	return results
}
