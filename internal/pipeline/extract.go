package pipeline

import (
	"fmt"
	"regexp"

	"go-tweet-pipeline/internal/model"
	"go-tweet-pipeline/internal/sentiment"
	"go-tweet-pipeline/pkg/logger"

	"go.uber.org/zap"
)

// ExtractorVersion identifies the field set produced by TweetExtractor.
const ExtractorVersion = 3

// TweetColumns is the fixed schema of an extracted table.
var TweetColumns = []model.Column{
	{Name: "created_at", Type: model.TypeTimestamp},
	{Name: "source", Type: model.TypeText},
	{Name: "original_text", Type: model.TypeText},
	{Name: "clean_text", Type: model.TypeText},
	{Name: "polarity", Type: model.TypeFloat},
	{Name: "subjectivity", Type: model.TypeFloat},
	{Name: "screen_name", Type: model.TypeCategory},
	{Name: "language", Type: model.TypeCategory},
	{Name: "retweet_count", Type: model.TypeInteger},
	{Name: "friends_count", Type: model.TypeInteger},
	{Name: "hashtags", Type: model.TypeList},
	{Name: "statuses_count", Type: model.TypeInteger},
	{Name: "followers_count", Type: model.TypeInteger},
	{Name: "favourites_count", Type: model.TypeInteger},
	{Name: "user_mentions", Type: model.TypeList},
	{Name: "possibly_sensitive", Type: model.TypeBoolean},
	{Name: "location", Type: model.TypeText},
}

// retweetPrefix matches a leading "RT @name:" marker.
var retweetPrefix = regexp.MustCompile(`^RT @?[^\s:]+:`)

// TweetExtractor parses a list of post records into a table.
// Every Find method returns one value per record, in input order, and
// substitutes nil for a missing key.
type TweetExtractor struct {
	tweets []model.Record
	scorer sentiment.Scorer
	logger *zap.Logger
}

// NewTweetExtractor creates an extractor over tweets. A nil scorer scores
// every text as neutral.
func NewTweetExtractor(tweets []model.Record, scorer sentiment.Scorer, log *zap.Logger) *TweetExtractor {
	if scorer == nil {
		scorer = sentiment.Nop
	}
	return &TweetExtractor{
		tweets: tweets,
		scorer: scorer,
		logger: logger.OrNop(log).Named("extractor"),
	}
}

// lookup walks a key path through nested maps and returns nil when any
// step is missing or not a map.
func lookup(rec model.Record, path ...string) interface{} {
	var cur interface{} = map[string]interface{}(rec)
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}

func (e *TweetExtractor) collect(fn func(model.Record) interface{}) []interface{} {
	values := make([]interface{}, 0, len(e.tweets))
	for _, rec := range e.tweets {
		values = append(values, fn(rec))
	}
	return values
}

func (e *TweetExtractor) field(path ...string) []interface{} {
	return e.collect(func(rec model.Record) interface{} {
		return lookup(rec, path...)
	})
}

// FindCreatedTime extracts the raw creation timestamps.
func (e *TweetExtractor) FindCreatedTime() []interface{} {
	return e.field("created_at")
}

// FindSource extracts the device name from the source hyperlink.
func (e *TweetExtractor) FindSource() []interface{} {
	return e.collect(func(rec model.Record) interface{} {
		s, ok := lookup(rec, "source").(string)
		if !ok {
			return nil
		}
		return SourceName(s)
	})
}

// FindFullText extracts the post text as written.
func (e *TweetExtractor) FindFullText() []interface{} {
	return e.field("text")
}

// FindCleanText extracts the post text with a leading retweet marker removed.
func (e *TweetExtractor) FindCleanText() []interface{} {
	return e.collect(func(rec model.Record) interface{} {
		text, ok := lookup(rec, "text").(string)
		if !ok {
			return nil
		}
		return CleanText(text)
	})
}

// CleanText strips a leading "RT @name:" marker and leaves anything else unchanged.
func CleanText(text string) string {
	return retweetPrefix.ReplaceAllString(text, "")
}

// FindSentiments scores the clean text of every record.
func (e *TweetExtractor) FindSentiments() (polarity, subjectivity []interface{}) {
	polarity = make([]interface{}, 0, len(e.tweets))
	subjectivity = make([]interface{}, 0, len(e.tweets))
	for _, text := range e.FindCleanText() {
		s, ok := text.(string)
		if !ok {
			polarity = append(polarity, nil)
			subjectivity = append(subjectivity, nil)
			continue
		}
		p, subj := e.scorer.Score(s)
		polarity = append(polarity, p)
		subjectivity = append(subjectivity, subj)
	}
	return polarity, subjectivity
}

// FindScreenName extracts the author's screen name.
func (e *TweetExtractor) FindScreenName() []interface{} {
	return e.field("user", "screen_name")
}

// FindLang extracts the declared language code.
func (e *TweetExtractor) FindLang() []interface{} {
	return e.field("lang")
}

// FindRetweetCount extracts the repost count.
func (e *TweetExtractor) FindRetweetCount() []interface{} {
	return e.field("retweet_count")
}

// FindFriendsCount extracts the author's friend count.
func (e *TweetExtractor) FindFriendsCount() []interface{} {
	return e.field("user", "friends_count")
}

// FindHashtags extracts the hashtag entities.
func (e *TweetExtractor) FindHashtags() []interface{} {
	return e.field("entities", "hashtags")
}

// FindStatusesCount extracts the author's status count.
func (e *TweetExtractor) FindStatusesCount() []interface{} {
	return e.field("user", "statuses_count")
}

// FindFollowersCount extracts the author's follower count.
func (e *TweetExtractor) FindFollowersCount() []interface{} {
	return e.field("user", "followers_count")
}

// FindFavouritesCount extracts the author's favourite count.
func (e *TweetExtractor) FindFavouritesCount() []interface{} {
	return e.field("user", "favourites_count")
}

// FindMentions extracts the user mention entities.
func (e *TweetExtractor) FindMentions() []interface{} {
	return e.field("entities", "user_mentions")
}

// FindSensitive extracts the sensitive-content flag.
func (e *TweetExtractor) FindSensitive() []interface{} {
	return e.field("possibly_sensitive")
}

// FindLocation extracts the author's location.
func (e *TweetExtractor) FindLocation() []interface{} {
	return e.field("user", "location")
}

// GetTweetTable runs every Find method and zips the results into rows.
func (e *TweetExtractor) GetTweetTable() *model.Table {
	polarity, subjectivity := e.FindSentiments()

	// same order as TweetColumns
	fields := [][]interface{}{
		e.FindCreatedTime(),
		e.FindSource(),
		e.FindFullText(),
		e.FindCleanText(),
		polarity,
		subjectivity,
		e.FindScreenName(),
		e.FindLang(),
		e.FindRetweetCount(),
		e.FindFriendsCount(),
		e.FindHashtags(),
		e.FindStatusesCount(),
		e.FindFollowersCount(),
		e.FindFavouritesCount(),
		e.FindMentions(),
		e.FindSensitive(),
		e.FindLocation(),
	}
	if len(fields) != len(TweetColumns) {
		panic(fmt.Sprintf("extractor produced %d fields for %d columns", len(fields), len(TweetColumns)))
	}

	table := model.NewTable(TweetColumns)
	table.Rows = make([]model.Row, len(e.tweets))
	for i := range e.tweets {
		row := make(model.Row, len(fields))
		for j, values := range fields {
			if len(values) != len(e.tweets) {
				panic(fmt.Sprintf("column %s has %d values for %d records", TweetColumns[j].Name, len(values), len(e.tweets)))
			}
			row[j] = values[i]
		}
		table.Rows[i] = row
	}

	e.logger.Info("extracted tweet table",
		zap.Int("records", len(e.tweets)),
		zap.Int("columns", len(table.Columns)),
		zap.Int("version", ExtractorVersion))
	return table
}
