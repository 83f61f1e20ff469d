// Package gmail retrieves schedule notification emails. It wraps the
// Gmail API behind two operations: searching for notification messages
// and fetching one message's decoded body.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrContentUnavailable reports that a message body could not be
// retrieved or decoded.
var ErrContentUnavailable = errors.New("message content unavailable")

// Query describes which messages count as schedule notifications.
type Query struct {
	Sender     string   // from: filter
	Subjects   []string // any of these subjects matches
	NewerThan  string   // Gmail relative age filter, e.g. "2m"; empty means all time
	MaxResults int64    // 0 means unlimited
}

// Client wraps the Gmail API.
type Client struct {
	service *gmail.Service
}

// NewClient creates a Gmail client using the provided authenticated
// HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &Client{service: service}, nil
}

// Search returns the IDs of messages matching the query, newest first
// (Gmail's listing order). Pages through results until exhausted or
// MaxResults is reached.
func (c *Client) Search(ctx context.Context, q Query) ([]string, error) {
	query := buildQuery(q)

	var ids []string
	pageToken := ""
	for {
		call := c.service.Users.Messages.List("me").Q(query).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		if q.MaxResults > 0 && q.MaxResults <= 500 {
			call = call.MaxResults(q.MaxResults)
		}

		var result *gmail.ListMessagesResponse
		err := doWithRetry(ctx, "list messages", func() error {
			var doErr error
			result, doErr = call.Do()
			return doErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, msg := range result.Messages {
			ids = append(ids, msg.Id)
		}

		if q.MaxResults > 0 && int64(len(ids)) >= q.MaxResults {
			ids = ids[:q.MaxResults]
			break
		}

		pageToken = result.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return ids, nil
}

// FetchPayload returns the decoded UTF-8 body of one message.
func (c *Client) FetchPayload(ctx context.Context, messageID string) (string, error) {
	var msg *gmail.Message
	err := doWithRetry(ctx, "get message", func() error {
		var doErr error
		msg, doErr = c.service.Users.Messages.Get("me", messageID).Context(ctx).Do()
		return doErr
	})
	if err != nil {
		return "", fmt.Errorf("%w: fetching %s: %v", ErrContentUnavailable, messageID, err)
	}

	if msg.Payload == nil {
		return "", fmt.Errorf("%w: message %s has no payload", ErrContentUnavailable, messageID)
	}

	// The body lives either directly on the payload or in its first part.
	data := ""
	if len(msg.Payload.Parts) > 0 {
		if msg.Payload.Parts[0].Body != nil {
			data = msg.Payload.Parts[0].Body.Data
		}
	} else if msg.Payload.Body != nil {
		data = msg.Payload.Body.Data
	}
	if data == "" {
		return "", fmt.Errorf("%w: message %s has an empty body", ErrContentUnavailable, messageID)
	}

	decoded, err := decodeBody(data)
	if err != nil {
		return "", fmt.Errorf("%w: decoding %s: %v", ErrContentUnavailable, messageID, err)
	}

	return decoded, nil
}

// buildQuery assembles the Gmail search expression.
func buildQuery(q Query) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "from:%s", q.Sender)

	if len(q.Subjects) > 0 {
		quoted := make([]string, len(q.Subjects))
		for i, s := range q.Subjects {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		fmt.Fprintf(&sb, " subject:(%s)", strings.Join(quoted, " OR "))
	}

	if q.NewerThan != "" {
		fmt.Fprintf(&sb, " newer_than:%s", q.NewerThan)
	}

	return sb.String()
}

// decodeBody decodes the base64url message body Gmail returns, with or
// without padding.
func decodeBody(data string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return "", err
		}
	}
	return string(decoded), nil
}

// doWithRetry runs an API call with exponential backoff and jitter.
// Client errors other than rate limiting are not retried.
func doWithRetry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		func() error {
			err := fn()
			if err == nil {
				return nil
			}
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) &&
				apiErr.Code != http.StatusTooManyRequests &&
				apiErr.Code < http.StatusInternalServerError {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("Retrying gmail %s (attempt %d): %v", op, n+1, err)
		}),
	)
}
