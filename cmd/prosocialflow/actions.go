package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ProSocialFlow/internal/domain"
)

var ideasCmd = &cobra.Command{
	Use:   "ideas <category>...",
	Short: "Generate one topic idea per category",
	Example: `  prosocialflow ideas STEM Sports
  prosocialflow ideas "AI and Machine Learning"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer application.Close()

		res := application.Actions().GenerateIdeas(cmd.Context(), args)
		return printResult(cmd.OutOrStdout(), res, res.Success, res.Error)
	},
}

var postTopics []string

var postsCmd = &cobra.Command{
	Use:     "posts",
	Short:   "Generate posts for selected topics and record them in history",
	Example: `  prosocialflow posts --topic "STEM=Fusion startups race to the grid" --topic "Sports=Marathon record falls"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, err := parseTopics(postTopics)
		if err != nil {
			return err
		}

		application, err := newHistoryApp(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer application.Close()

		res := application.Actions().GeneratePosts(cmd.Context(), topics)
		return printResult(cmd.OutOrStdout(), res, res.Success, res.Error)
	},
}

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Pick an image of the day and describe it",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer application.Close()

		res := application.Actions().GenerateImage(cmd.Context())
		return printResult(cmd.OutOrStdout(), res, res.Success, res.Error)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent topics per category",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newHistoryApp(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer application.Close()

		res := application.Actions().FetchHistory(cmd.Context())
		return printResult(cmd.OutOrStdout(), res, res.Success, res.Error)
	},
}

func init() {
	postsCmd.Flags().StringArrayVar(&postTopics, "topic", nil, "selected topic as category=topic (repeatable)")
}

// parseTopics turns "category=topic" flags into selected topics.
func parseTopics(raw []string) ([]domain.SelectedTopic, error) {
	topics := make([]domain.SelectedTopic, 0, len(raw))
	for _, r := range raw {
		category, topic, ok := strings.Cut(r, "=")
		category, topic = strings.TrimSpace(category), strings.TrimSpace(topic)
		if !ok || category == "" || topic == "" {
			return nil, fmt.Errorf("invalid --topic %q: want category=topic", r)
		}
		topics = append(topics, domain.SelectedTopic{Category: category, Topic: topic})
	}
	return topics, nil
}
