// Package output renders sync core entities for the terminal, as text,
// tables or JSON depending on output.format.
package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/feedsync/pkg/config"
	"github.com/zfogg/feedsync/pkg/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Out is where everything is printed
var Out io.Writer = color.Output

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
	FormatText  OutputFormat = "text"
)

// GetOutputFormat returns the configured output format
func GetOutputFormat() OutputFormat {
	switch config.GetString("output.format") {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// ValidateOutputFormat checks if format is valid
func ValidateOutputFormat(format string) bool {
	return format == "json" || format == "table" || format == "text"
}

var (
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
	red   = color.New(color.FgRed)
	cyan  = color.New(color.FgCyan)
)

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(Out, msg+"\n", args...)
}

// PrintError prints an error message
func PrintError(msg string, args ...interface{}) {
	red.Fprintf(Out, "Error: "+msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	cyan.Fprintf(Out, msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(Out, "Warning: "+msg+"\n", args...)
}

// PrintJSON writes v as indented JSON
func PrintJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(Out, string(data))
	return err
}

// Ago renders t relative to now
func Ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func displayName(a entity.Author) string {
	if a.Name != "" {
		return fmt.Sprintf("%s (@%s)", a.Name, a.Username)
	}
	return "@" + a.Username
}

// PrintPosts renders a list of posts
func PrintPosts(posts []entity.Post) error {
	switch GetOutputFormat() {
	case FormatJSON:
		return PrintJSON(posts)
	case FormatTable:
		rows := make([][]string, 0, len(posts))
		for _, p := range posts {
			rows = append(rows, []string{
				p.ID, "@" + p.Author.Username, truncate(p.Text, 40),
				fmt.Sprint(p.LikesCount), fmt.Sprint(p.CommentsCount), Ago(p.CreatedAt),
			})
		}
		printTable([]string{"ID", "AUTHOR", "TEXT", "LIKES", "COMMENTS", "POSTED"}, rows)
		return nil
	}

	if len(posts) == 0 {
		faint.Fprintln(Out, "No posts yet.")
		return nil
	}
	for _, p := range posts {
		printPostText(p)
		fmt.Fprintln(Out)
	}
	return nil
}

// PrintPost renders one post with the comments loaded for it
func PrintPost(p entity.Post, comments []entity.Comment) error {
	if GetOutputFormat() == FormatJSON {
		return PrintJSON(struct {
			entity.Post
			Comments []entity.Comment `json:"comments"`
		}{p, comments})
	}
	printPostText(p)
	if len(comments) > 0 {
		fmt.Fprintln(Out)
		printCommentsText(comments)
	}
	return nil
}

func printPostText(p entity.Post) {
	bold.Fprint(Out, displayName(p.Author))
	faint.Fprintf(Out, "  %s  [%s]\n", Ago(p.CreatedAt), p.ID)
	if p.ImageURL != "" {
		cyan.Fprintln(Out, p.ImageURL)
	}
	if p.Text != "" {
		fmt.Fprintln(Out, p.Text)
	}
	heart := "♡"
	if p.LikedByMe {
		heart = red.Sprint("♥")
	}
	fmt.Fprintf(Out, "%s %d   💬 %d", heart, p.LikesCount, p.CommentsCount)
	if p.IsMine {
		faint.Fprint(Out, "   (yours)")
	}
	fmt.Fprintln(Out)
}

// PrintComments renders a comment list, newest first
func PrintComments(comments []entity.Comment) error {
	if GetOutputFormat() == FormatJSON {
		return PrintJSON(comments)
	}
	if len(comments) == 0 {
		faint.Fprintln(Out, "No comments.")
		return nil
	}
	printCommentsText(comments)
	return nil
}

func printCommentsText(comments []entity.Comment) {
	for _, c := range comments {
		bold.Fprint(Out, "  @"+c.Author.Username)
		faint.Fprintf(Out, "  %s  [%s]", Ago(c.CreatedAt), c.ID)
		if c.Pending {
			faint.Fprint(Out, "  sending…")
		}
		fmt.Fprintln(Out)
		fmt.Fprintln(Out, "  "+c.Text)
	}
}

// PrintThreads renders the inbox
func PrintThreads(threads []entity.Thread) error {
	switch GetOutputFormat() {
	case FormatJSON:
		return PrintJSON(threads)
	}
	if len(threads) == 0 {
		faint.Fprintln(Out, "No conversations yet.")
		return nil
	}
	rows := make([][]string, 0, len(threads))
	for _, t := range threads {
		rows = append(rows, []string{t.ID, displayName(t.Participant), truncate(t.LastMessage, 50)})
	}
	printTable([]string{"ID", "WITH", "LAST MESSAGE"}, rows)
	return nil
}

// PrintMessages renders a thread, oldest first. Messages sent by viewerID
// are marked as yours.
func PrintMessages(msgs []entity.Message, viewerID string) error {
	if GetOutputFormat() == FormatJSON {
		return PrintJSON(msgs)
	}
	for _, m := range msgs {
		who := "them"
		if m.SenderID == viewerID {
			who = "you"
		}
		faint.Fprintf(Out, "%-16s ", m.CreatedAt.Local().Format("Jan 02 15:04"))
		bold.Fprintf(Out, "%-5s ", who)
		fmt.Fprint(Out, m.Text)
		switch m.Status {
		case entity.StatusSending:
			faint.Fprint(Out, "  (sending)")
		case entity.StatusFailed:
			red.Fprintf(Out, "  (failed, retry with id %s)", m.ID)
		}
		fmt.Fprintln(Out)
	}
	return nil
}

// PrintUser renders a profile
func PrintUser(u entity.User, following bool) error {
	if GetOutputFormat() == FormatJSON {
		return PrintJSON(struct {
			entity.User
			Following bool `json:"following"`
		}{u, following})
	}
	bold.Fprintln(Out, displayName(u.Preview()))
	faint.Fprintf(Out, "id %s\n", u.ID)
	if u.Bio != "" {
		fmt.Fprintln(Out, u.Bio)
	}
	if u.Avatar != "" && !strings.HasPrefix(u.Avatar, "data:") {
		cyan.Fprintln(Out, u.Avatar)
	}
	if following {
		fmt.Fprintln(Out, "You follow this user")
	}
	return nil
}

// PrintUsers renders search results
func PrintUsers(users []entity.User) error {
	if GetOutputFormat() == FormatJSON {
		return PrintJSON(users)
	}
	if len(users) == 0 {
		faint.Fprintln(Out, "No users found.")
		return nil
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{u.ID, "@" + u.Username, u.Name})
	}
	printTable([]string{"ID", "USERNAME", "NAME"}, rows)
	return nil
}

func printTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, bold.Sprint(strings.Join(headers, "\t")))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}
