package models

import "time"

// ReviewRequest is one review submitted for classification, over HTTP or on
// the review-requests topic.
type ReviewRequest struct {
	ReviewID string `json:"review_id,omitempty"`
	Source   string `json:"source,omitempty"`
	Text     string `json:"text"`
}

type ReviewResult struct {
	ReviewID      string    `json:"review_id" dynamodbav:"ReviewID"`
	Source        string    `json:"source,omitempty" dynamodbav:"Source,omitempty"`
	Text          string    `json:"text" dynamodbav:"Text"`
	Normalized    string    `json:"normalized" dynamodbav:"Normalized"`
	Engine        string    `json:"engine" dynamodbav:"Engine"`
	Model         string    `json:"model" dynamodbav:"Model"`
	Class         int       `json:"class" dynamodbav:"Class"`
	Category      string    `json:"category" dynamodbav:"Category"`
	Label         string    `json:"label" dynamodbav:"Label"`
	Emoji         string    `json:"emoji" dynamodbav:"Emoji"`
	Note          string    `json:"note" dynamodbav:"Note"`
	Confidence    float64   `json:"confidence,omitempty" dynamodbav:"Confidence,omitempty"`
	HasConfidence bool      `json:"has_confidence" dynamodbav:"HasConfidence"`
	Cached        bool      `json:"cached" dynamodbav:"-"`
	Timestamp     time.Time `json:"timestamp" dynamodbav:"Timestamp"`
}

// ComparisonResult holds one result per model, all computed from the same
// normalized text.
type ComparisonResult struct {
	ReviewID   string         `json:"review_id"`
	Text       string         `json:"text"`
	Normalized string         `json:"normalized"`
	Results    []ReviewResult `json:"results"`
}
