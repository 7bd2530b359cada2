// Package export builds a JSON snapshot of a user's calendar data, uploads
// it to S3-compatible storage, and hands back a short-lived download link.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	sc "github.com/akhramovs/tempora/internal/server/config"
	"github.com/akhramovs/tempora/internal/server/models"
)

// urlTTL is how long a returned download link stays valid.
const urlTTL = 15 * time.Minute

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

type calendarSource interface {
	GetAll(ctx context.Context, userID string) ([]models.Calendar, error)
}

type eventSource interface {
	GetAll(ctx context.Context, userID string) ([]models.Event, error)
}

// Snapshot is the exported document shape.
type Snapshot struct {
	ExportedAt time.Time         `json:"exportedAt"`
	Calendars  []models.Calendar `json:"calendars"`
	Events     []models.Event    `json:"events"`
}

type Service struct {
	config    *sc.Config
	calendars calendarSource
	events    eventSource
}

func NewService(config *sc.Config, calendars calendarSource, events eventSource) *Service {
	return &Service{config: config, calendars: calendars, events: events}
}

// storageKey places exports under a per-day prefix with a random suffix so
// keys are unguessable.
func storageKey(userID string) string {
	d := time.Now()
	return fmt.Sprintf("exports/%s/%d/%d/%d/%v.json", userID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *Service) getClient() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Export uploads a snapshot of the user's calendars and events and returns
// a presigned download URL valid for fifteen minutes.
func (s *Service) Export(ctx context.Context, userID string) (string, error) {
	calendars, err := s.calendars.GetAll(ctx, userID)
	if err != nil {
		return "", err
	}
	events, err := s.events.GetAll(ctx, userID)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(Snapshot{
		ExportedAt: time.Now().UTC(),
		Calendars:  calendars,
		Events:     events,
	})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	client, err := s.getClient()
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	key := storageKey(userID)
	contentType := "application/json"

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	}); err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(urlTTL))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
