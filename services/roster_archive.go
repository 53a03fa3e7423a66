package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mewannirundakaperera/SkillNet-sub001/models"
)

// RosterArchive keeps a copy of every provisioned meeting roster
type RosterArchive interface {
	Put(ctx context.Context, m models.Meeting) (string, error)
	ReadURL(ctx context.Context, key string) (string, error)
}

// S3RosterArchive stores rosters as JSON objects in a bucket
type S3RosterArchive struct {
	Client *s3.Client
	Bucket string
}

// NewS3RosterArchive creates the archive from the shared AWS config
func NewS3RosterArchive(cfg aws.Config, bucket string) *S3RosterArchive {
	return &S3RosterArchive{Client: s3.NewFromConfig(cfg), Bucket: bucket}
}

// RosterKey is the object key of a meeting's roster
func RosterKey(m models.Meeting) string {
	return "rosters/" + m.RequestID + "/" + m.MeetingID + ".json"
}

// Put uploads the roster of m and returns its key
func (a *S3RosterArchive) Put(ctx context.Context, m models.Meeting) (string, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal roster: %w", err)
	}
	key := RosterKey(m)
	_, err = a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload roster '%s': %w", key, err)
	}
	return key, nil
}

// ReadURL generates a presigned URL for reading a roster
func (a *S3RosterArchive) ReadURL(ctx context.Context, key string) (string, error) {
	presigner := s3.NewPresignClient(a.Client)
	presigned, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}
	return presigned.URL, nil
}
