package domain

import "time"

// Category names a content domain such as "STEM" or "Politics".
type Category = string

// SelectedTopic is a locked idea handed to the post generator.
type SelectedTopic struct {
	Category Category `json:"category"`
	Topic    string   `json:"topic"`
}

// SocialPost is a generated draft waiting in a post queue.
type SocialPost struct {
	ID       string   `json:"id,omitempty"`
	Category Category `json:"category"`
	Topic    string   `json:"topic"`
	Content  string   `json:"post"`
}

// ImageOfTheDay pairs a placeholder image with generated alt text.
type ImageOfTheDay struct {
	ImageURL string `json:"imageUrl"`
	AltText  string `json:"altText"`
}

// TopicHistoryRecord is the persisted list of recently used topics for one category.
type TopicHistoryRecord struct {
	Category     Category  `json:"category"`
	RecentTopics []string  `json:"recentTopics"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DefaultCategories is used when configuration does not list any.
var DefaultCategories = []Category{
	"STEM",
	"AI and Machine Learning",
	"Wildlife and Nature",
	"Vegan Living",
	"Sports",
	"Politics",
	"Streaming Culture",
	"Gaming News",
}
