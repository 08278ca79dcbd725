// Package models holds the records exchanged with the backend. They are
// plain values: once fetched they are never mutated in place.
package models

import "time"

// Table names of the hosted database
const (
	TablePost               = "post"
	TableComment            = "comment"
	TableLike               = "like"
	TableSavedPost          = "saved_post"
	TableConnection         = "connection"
	TableConnectionRequest  = "connection_request"
	TableChatRooms          = "chat_rooms"
	TableChatRoomIndividual = "chat_room_individual"
	TableUser               = "user"
	TableDomains            = "domenii"
	TableFunctions          = "functii"
	TableOccupations        = "ocupatii"
	TableEducationActivity  = "education_activity"
	TableJobActivity        = "job_activity"
	TableOtherActivity      = "other_activity"
)

// User is a member of the network
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Headline     string    `json:"headline,omitempty"`
	ProfileImage string    `json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName returns the full name, falling back to the username
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// Count is the shape of an embedded aggregate such as like(count)
type Count struct {
	Count int `json:"count"`
}

// Post is an entry in the feed
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Embedded by select=*,user(*),like(count),comment(count)
	Author   *User   `json:"user,omitempty"`
	Likes    []Count `json:"like,omitempty"`
	Comments []Count `json:"comment,omitempty"`
}

// LikeCount returns the embedded like count
func (p Post) LikeCount() int {
	if len(p.Likes) == 0 {
		return 0
	}
	return p.Likes[0].Count
}

// CommentCount returns the embedded comment count
func (p Post) CommentCount() int {
	if len(p.Comments) == 0 {
		return 0
	}
	return p.Comments[0].Count
}

// NewPost is the insert payload for a post
type NewPost struct {
	UserID   string `json:"user_id"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}

// Comment is a reply to a post
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Author    *User     `json:"user,omitempty"`
}

// NewComment is the insert payload for a comment
type NewComment struct {
	PostID  string `json:"post_id"`
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

// Like marks a post as liked by a user
type Like struct {
	ID        string    `json:"id,omitempty"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// PostReaction is the insert payload for likes and saved posts
type PostReaction struct {
	PostID string `json:"post_id"`
	UserID string `json:"user_id"`
}

// SavedPost marks a post as bookmarked by a user
type SavedPost struct {
	ID        string    `json:"id,omitempty"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	Post      *Post     `json:"post,omitempty"`
}

// Connection is one direction of an accepted connection
type Connection struct {
	ID           string    `json:"id,omitempty"`
	UserID       string    `json:"user_id"`
	ConnectionID string    `json:"connection_id"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	Peer         *User     `json:"peer,omitempty"`
}

// NewConnection is the insert payload for one direction of a connection
type NewConnection struct {
	UserID       string `json:"user_id"`
	ConnectionID string `json:"connection_id"`
}

// Connection request states
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

// ConnectionRequest asks another user to connect
type ConnectionRequest struct {
	ID         string    `json:"id,omitempty"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	Sender     *User     `json:"sender,omitempty"`
	Receiver   *User     `json:"receiver,omitempty"`
}

// NewConnectionRequest is the insert payload for a connection request
type NewConnectionRequest struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Status     string `json:"status"`
}

// ChatRoom is a conversation container
type ChatRoom struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	IsGroup   bool      `json:"is_group"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRoomMember links a user to a chat room
type ChatRoomMember struct {
	ID         string    `json:"id,omitempty"`
	ChatRoomID string    `json:"chat_room_id"`
	UserID     string    `json:"user_id"`
	JoinedAt   time.Time `json:"joined_at,omitempty"`
	Room       *ChatRoom `json:"chat_rooms,omitempty"`
	User       *User     `json:"user,omitempty"`
}

// NewChatRoom is the insert payload for a chat room
type NewChatRoom struct {
	Name    string `json:"name,omitempty"`
	IsGroup bool   `json:"is_group"`
}

// NewChatRoomMember is the insert payload for a chat room member
type NewChatRoomMember struct {
	ChatRoomID string `json:"chat_room_id"`
	UserID     string `json:"user_id"`
}

// Message is one chat line
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	Sender         *User     `json:"sender,omitempty"`
}

// Conversation is a chat room with its participants and messages
type Conversation struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Participants []User    `json:"participants"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasParticipant reports whether userID belongs to the conversation.
// This only decides what the client offers; the server must enforce it.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Peer returns the first participant who is not userID
func (c Conversation) Peer(userID string) (User, bool) {
	for _, p := range c.Participants {
		if p.ID != userID {
			return p, true
		}
	}
	return User{}, false
}

// Domain is a field of activity (domenii)
type Domain struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Function is a role within a domain (functii)
type Function struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	DomainID int    `json:"domain_id,omitempty"`
}

// Occupation is a job title (ocupatii)
type Occupation struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// EducationActivity is a school or course on a profile
type EducationActivity struct {
	ID             string     `json:"id,omitempty"`
	UserID         string     `json:"user_id"`
	Institution    string     `json:"institution"`
	Specialization string     `json:"specialization,omitempty"`
	DomainID       int        `json:"domain_id"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Description    string     `json:"description,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
}

// JobActivity is a position on a profile
type JobActivity struct {
	ID           string     `json:"id,omitempty"`
	UserID       string     `json:"user_id"`
	Company      string     `json:"company"`
	DomainID     int        `json:"domain_id"`
	FunctionID   int        `json:"function_id"`
	OccupationID int        `json:"occupation_id"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Description  string     `json:"description,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
}

// OtherActivity is volunteering, a project, an award and so on
type OtherActivity struct {
	ID          string     `json:"id,omitempty"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	DomainID    int        `json:"domain_id"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
}

// UserProfile is the aggregated profile served by the REST backend
type UserProfile struct {
	User            User                `json:"user"`
	Education       []EducationActivity `json:"education"`
	Jobs            []JobActivity       `json:"jobs"`
	Other           []OtherActivity     `json:"other"`
	ConnectionCount int                 `json:"connectionCount"`
	PostCount       int                 `json:"postCount"`
}
