// Package ai talks to Gemini: reading a task off a photo and writing the
// step-by-step explanation.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"homework_bot/internal/logger"
	"homework_bot/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	OCRPrompt = "Считай текст с изображения школьного задания.\n" +
		"Верни ТОЛЬКО условие задачи, без решения.\n" +
		"Если есть варианты ответов, включи их.\n" +
		"Если задач несколько, верни первую сверху.\n" +
		"Сохраняй формулы текстом: x^2, (a+b)/c, sqrt(5).\n"

	TutorPrompt = "Ты школьный наставник. Объясняй решение по шагам, простыми словами, " +
		"на языке вопроса. В конце дай короткий ответ. Не используй Markdown-таблицы."

	maxRetries      = 2
	initialInterval = 500 * time.Millisecond
	maxInterval     = 4 * time.Second
	requestTimeout  = 90 * time.Second
)

var ErrEmptyResponse = errors.New("empty model response")

// Client wraps the Gemini models used by the bot
type Client struct {
	client *genai.Client
	ocr    *genai.GenerativeModel
	tutor  *genai.GenerativeModel
}

// NewClient creates a Gemini client. The caller must Close it.
func NewClient(ctx context.Context, apiKey, ocrModel, answerModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	ocr := client.GenerativeModel(ocrModel)
	ocr.SetTemperature(0)

	tutor := client.GenerativeModel(answerModel)
	tutor.SystemInstruction = genai.NewUserContent(genai.Text(TutorPrompt))
	tutor.SetTemperature(0.3)

	return &Client{client: client, ocr: ocr, tutor: tutor}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ReadTask extracts the task statement from a photo. An empty string means
// no text was found.
func (c *Client) ReadTask(ctx context.Context, photo []byte) (string, error) {
	img, err := PrepareImage(photo)
	if err != nil {
		return "", err
	}

	text, err := withRetry(ctx, func(ctx context.Context) (string, error) {
		resp, err := c.ocr.GenerateContent(ctx, genai.Text(OCRPrompt), genai.ImageData("jpeg", img))
		if err != nil {
			return "", err
		}
		return ResponseText(resp), nil
	})
	if err != nil {
		metrics.CollaboratorFailures.WithLabelValues("ocr").Inc()
		return "", fmt.Errorf("gemini ocr: %w", err)
	}
	return text, nil
}

// Explain writes the explanation for a task
func (c *Client) Explain(ctx context.Context, task string) (string, error) {
	text, err := withRetry(ctx, func(ctx context.Context) (string, error) {
		resp, err := c.tutor.GenerateContent(ctx, genai.Text(task))
		if err != nil {
			return "", err
		}
		text := ResponseText(resp)
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	})
	if err != nil {
		metrics.CollaboratorFailures.WithLabelValues("answer").Inc()
		return "", fmt.Errorf("gemini answer: %w", err)
	}
	return text, nil
}

// ResponseText joins the text parts of the first candidate
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}

func withRetry[T any](ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	var result T

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
	), maxRetries)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		var err error
		result, err = op(callCtx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if err != nil {
			logger.Debug("gemini call failed", "attempt", attempt, "error", err)
		}
		return err
	}, backoff.WithContext(b, ctx))
	return result, err
}
