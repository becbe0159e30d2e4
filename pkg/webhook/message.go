package webhook

import (
	"fmt"
	"strconv"
	"time"

	"github.com/clbanning/mxj/v2"
)

// MessageType identifies the kind of inbound message
type MessageType string

const (
	MessageTypeText       MessageType = "text"
	MessageTypeImage      MessageType = "image"
	MessageTypeVoice      MessageType = "voice"
	MessageTypeVideo      MessageType = "video"
	MessageTypeShortVideo MessageType = "shortvideo"
	MessageTypeLocation   MessageType = "location"
	MessageTypeLink       MessageType = "link"
	MessageTypeEvent      MessageType = "event"
)

// Message is a decoded inbound webhook message. Fields are populated
// according to MsgType; unrecognized types are still returned with the
// common fields filled in and the rest available through Raw.
type Message struct {
	MsgID      int64
	MsgType    MessageType
	FromUser   string
	ToUser     string
	CreateTime time.Time

	// text
	Content string

	// image / voice / video / shortvideo
	MediaID      string
	PicURL       string
	Format       string
	Recognition  string
	ThumbMediaID string

	// location
	LocationX float64
	LocationY float64
	Scale     int
	Label     string

	// link
	Title       string
	Description string
	URL         string

	// event
	Event    string
	EventKey string
	Ticket   string

	raw mxj.Map
}

// Raw returns the full decoded XML document for access to fields the typed
// struct does not carry.
func (m *Message) Raw() map[string]interface{} {
	return m.raw
}

func parseMessage(doc mxj.Map) (*Message, error) {
	msgType := stringAt(doc, "xml.MsgType")
	if msgType == "" {
		return nil, fmt.Errorf("%w: missing MsgType", ErrMalformedPayload)
	}

	msg := &Message{
		MsgType:  MessageType(msgType),
		FromUser: stringAt(doc, "xml.FromUserName"),
		ToUser:   stringAt(doc, "xml.ToUserName"),
		raw:      doc,
	}

	if created := intAt(doc, "xml.CreateTime"); created > 0 {
		msg.CreateTime = time.Unix(created, 0)
	}
	msg.MsgID = intAt(doc, "xml.MsgId")

	switch msg.MsgType {
	case MessageTypeText:
		msg.Content = stringAt(doc, "xml.Content")
	case MessageTypeImage:
		msg.MediaID = stringAt(doc, "xml.MediaId")
		msg.PicURL = stringAt(doc, "xml.PicUrl")
	case MessageTypeVoice:
		msg.MediaID = stringAt(doc, "xml.MediaId")
		msg.Format = stringAt(doc, "xml.Format")
		msg.Recognition = stringAt(doc, "xml.Recognition")
	case MessageTypeVideo, MessageTypeShortVideo:
		msg.MediaID = stringAt(doc, "xml.MediaId")
		msg.ThumbMediaID = stringAt(doc, "xml.ThumbMediaId")
	case MessageTypeLocation:
		msg.LocationX = floatAt(doc, "xml.Location_X")
		msg.LocationY = floatAt(doc, "xml.Location_Y")
		msg.Scale = int(intAt(doc, "xml.Scale"))
		msg.Label = stringAt(doc, "xml.Label")
	case MessageTypeLink:
		msg.Title = stringAt(doc, "xml.Title")
		msg.Description = stringAt(doc, "xml.Description")
		msg.URL = stringAt(doc, "xml.Url")
	case MessageTypeEvent:
		msg.Event = stringAt(doc, "xml.Event")
		msg.EventKey = stringAt(doc, "xml.EventKey")
		msg.Ticket = stringAt(doc, "xml.Ticket")
	}

	return msg, nil
}

func stringAt(doc mxj.Map, path string) string {
	value, err := doc.ValueForPath(path)
	if err != nil {
		return ""
	}

	s, _ := value.(string)
	return s
}

func intAt(doc mxj.Map, path string) int64 {
	n, err := strconv.ParseInt(stringAt(doc, path), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func floatAt(doc mxj.Map, path string) float64 {
	f, err := strconv.ParseFloat(stringAt(doc, path), 64)
	if err != nil {
		return 0
	}
	return f
}
