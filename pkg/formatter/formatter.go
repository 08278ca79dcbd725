// Package formatter renders domain records through the output package.
package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/zfogg/circle/cli/pkg/models"
	"github.com/zfogg/circle/cli/pkg/output"
)

var (
	Bold  = color.New(color.Bold)
	Faint = color.New(color.Faint)
	Cyan  = color.New(color.FgCyan)
)

const snippetLength = 60

// Snippet shortens s to a single line of at most n runes
func Snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Ago renders t relative to now
func Ago(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// Period renders an activity's start and end dates
func Period(start time.Time, end *time.Time) string {
	if end == nil {
		return start.Format("2006-01") + " - present"
	}
	return start.Format("2006-01") + " - " + end.Format("2006-01")
}

func author(u *models.User, fallback string) string {
	if u == nil {
		return fallback
	}
	return u.Username
}

// PostTable lays out posts one per row
func PostTable(posts []models.Post) output.Table {
	now := time.Now()
	rows := make([][]string, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, []string{
			p.ID,
			author(p.Author, p.UserID),
			Snippet(p.Content, snippetLength),
			strconv.Itoa(p.LikeCount()),
			strconv.Itoa(p.CommentCount()),
			Ago(p.CreatedAt, now),
		})
	}
	return output.Table{
		Headers: []string{"ID", "AUTHOR", "CONTENT", "LIKES", "COMMENTS", "POSTED"},
		Rows:    rows,
		Raw:     posts,
	}
}

// PrintPost prints a post followed by its comments
func PrintPost(p models.Post, comments []models.Comment) error {
	if output.GetOutputFormat() == output.FormatJSON {
		return output.Print("", map[string]interface{}{"post": p, "comments": comments})
	}

	w := output.Writer()
	now := time.Now()
	Bold.Fprintf(w, "%s", author(p.Author, p.UserID))
	Faint.Fprintf(w, "  %s  %s\n", p.ID, Ago(p.CreatedAt, now))
	fmt.Fprintln(w, p.Content)
	if p.ImageURL != "" {
		Cyan.Fprintln(w, p.ImageURL)
	}
	Faint.Fprintf(w, "%d likes, %d comments\n", p.LikeCount(), p.CommentCount())

	for _, c := range comments {
		fmt.Fprintf(w, "  %s: %s", author(c.Author, c.UserID), c.Content)
		Faint.Fprintf(w, "  (%s, %s)\n", c.ID, Ago(c.CreatedAt, now))
	}
	return nil
}

// ConnectionTable lays out connections by peer
func ConnectionTable(conns []models.Connection) output.Table {
	rows := make([][]string, 0, len(conns))
	for _, c := range conns {
		name := c.ConnectionID
		display := ""
		if c.Peer != nil {
			name = c.Peer.Username
			display = c.Peer.DisplayName()
		}
		rows = append(rows, []string{c.ConnectionID, name, display, c.CreatedAt.Format("2006-01-02")})
	}
	return output.Table{
		Headers: []string{"USER ID", "USERNAME", "NAME", "SINCE"},
		Rows:    rows,
		Raw:     conns,
	}
}

// RequestTable lays out connection requests. incoming selects whether
// the sender or the receiver is shown.
func RequestTable(reqs []models.ConnectionRequest, incoming bool) output.Table {
	now := time.Now()
	rows := make([][]string, 0, len(reqs))
	for _, r := range reqs {
		who := author(r.Receiver, r.ReceiverID)
		if incoming {
			who = author(r.Sender, r.SenderID)
		}
		rows = append(rows, []string{r.ID, who, r.Status, Ago(r.CreatedAt, now)})
	}
	header := "TO"
	if incoming {
		header = "FROM"
	}
	return output.Table{
		Headers: []string{"REQUEST", header, "STATUS", "SENT"},
		Rows:    rows,
		Raw:     reqs,
	}
}

// RoomTable lays out chat rooms
func RoomTable(rooms []models.ChatRoom) output.Table {
	rows := make([][]string, 0, len(rooms))
	for _, r := range rooms {
		kind := "direct"
		if r.IsGroup {
			kind = "group"
		}
		rows = append(rows, []string{r.ID, r.Name, kind, r.CreatedAt.Format("2006-01-02")})
	}
	return output.Table{
		Headers: []string{"ID", "NAME", "KIND", "CREATED"},
		Rows:    rows,
		Raw:     rooms,
	}
}

// PrintConversation prints the messages of conv from me's point of view
func PrintConversation(conv *models.Conversation, me string) error {
	if output.GetOutputFormat() == output.FormatJSON {
		return output.Print("", conv)
	}

	w := output.Writer()
	names := make(map[string]string, len(conv.Participants))
	for _, p := range conv.Participants {
		names[p.ID] = p.Username
	}

	title := conv.Name
	if title == "" {
		if peer, ok := conv.Peer(me); ok {
			title = peer.DisplayName()
		}
	}
	Bold.Fprintf(w, "%s", title)
	Faint.Fprintf(w, "  (%d messages)\n", len(conv.Messages))

	for _, m := range conv.Messages {
		who := names[m.SenderID]
		if who == "" {
			who = m.SenderID
		}
		if m.SenderID == me {
			Cyan.Fprintf(w, "%s", who)
		} else {
			Bold.Fprintf(w, "%s", who)
		}
		Faint.Fprintf(w, " [%s]", m.CreatedAt.Local().Format("15:04"))
		fmt.Fprintf(w, " %s\n", m.Content)
	}
	return nil
}

// PrintProfile prints a profile summary with its activities
func PrintProfile(p *models.UserProfile) error {
	if output.GetOutputFormat() == output.FormatJSON {
		return output.Print("", p)
	}

	if err := output.PrintRecord(p.User.DisplayName(), map[string]interface{}{
		"id":          p.User.ID,
		"username":    p.User.Username,
		"headline":    p.User.Headline,
		"connections": p.ConnectionCount,
		"posts":       p.PostCount,
	}); err != nil {
		return err
	}
	return PrintActivities(p.Education, p.Jobs, p.Other)
}

// PrintActivities prints the three activity lists
func PrintActivities(edu []models.EducationActivity, jobs []models.JobActivity, other []models.OtherActivity) error {
	if output.GetOutputFormat() == output.FormatJSON {
		return output.Print("", map[string]interface{}{"education": edu, "jobs": jobs, "other": other})
	}

	headers := []string{"ID", "TITLE", "PERIOD", "DOMAIN"}

	rows := make([][]string, 0, len(edu))
	for _, e := range edu {
		rows = append(rows, []string{e.ID, e.Institution, Period(e.StartDate, e.EndDate), strconv.Itoa(e.DomainID)})
	}
	if err := output.PrintList("Education", output.Table{Headers: headers, Rows: rows}); err != nil {
		return err
	}

	rows = make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{j.ID, j.Company, Period(j.StartDate, j.EndDate), strconv.Itoa(j.DomainID)})
	}
	if err := output.PrintList("Jobs", output.Table{Headers: headers, Rows: rows}); err != nil {
		return err
	}

	rows = make([][]string, 0, len(other))
	for _, o := range other {
		rows = append(rows, []string{o.ID, o.Title, Period(o.StartDate, o.EndDate), strconv.Itoa(o.DomainID)})
	}
	return output.PrintList("Other", output.Table{Headers: headers, Rows: rows})
}

// DomainTable lays out domains
func DomainTable(domains []models.Domain) output.Table {
	rows := make([][]string, 0, len(domains))
	for _, d := range domains {
		rows = append(rows, []string{strconv.Itoa(d.ID), d.Name})
	}
	return output.Table{Headers: []string{"ID", "NAME"}, Rows: rows, Raw: domains}
}

// FunctionTable lays out functions
func FunctionTable(fns []models.Function) output.Table {
	rows := make([][]string, 0, len(fns))
	for _, f := range fns {
		rows = append(rows, []string{strconv.Itoa(f.ID), f.Name, strconv.Itoa(f.DomainID)})
	}
	return output.Table{Headers: []string{"ID", "NAME", "DOMAIN"}, Rows: rows, Raw: fns}
}

// OccupationTable lays out occupations
func OccupationTable(occs []models.Occupation) output.Table {
	rows := make([][]string, 0, len(occs))
	for _, o := range occs {
		rows = append(rows, []string{strconv.Itoa(o.ID), o.Name})
	}
	return output.Table{Headers: []string{"ID", "NAME"}, Rows: rows, Raw: occs}
}
