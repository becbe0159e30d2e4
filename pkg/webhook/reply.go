package webhook

import (
	"encoding/xml"
	"fmt"
	"time"
)

// CDATA renders its value inside a CDATA section.
type CDATA struct {
	Value string `xml:",cdata"`
}

type ReplyHeader struct {
	ToUserName   CDATA `xml:"ToUserName"`
	FromUserName CDATA `xml:"FromUserName"`
	CreateTime   int64 `xml:"CreateTime"`
	MsgType      CDATA `xml:"MsgType"`
}

// newReplyHeader swaps the sender and receiver of the message being
// answered, matching what the platform expects from a passive reply.
func newReplyHeader(msg *Message, msgType string) ReplyHeader {
	return ReplyHeader{
		ToUserName:   CDATA{msg.FromUser},
		FromUserName: CDATA{msg.ToUser},
		CreateTime:   time.Now().Unix(),
		MsgType:      CDATA{msgType},
	}
}

// TextReply is a passive text answer to an inbound message
type TextReply struct {
	XMLName xml.Name `xml:"xml"`
	ReplyHeader
	Content CDATA `xml:"Content"`
}

func NewTextReply(msg *Message, content string) *TextReply {
	return &TextReply{
		ReplyHeader: newReplyHeader(msg, "text"),
		Content:     CDATA{content},
	}
}

// ImageReply is a passive image answer referencing an uploaded media id
type ImageReply struct {
	XMLName xml.Name `xml:"xml"`
	ReplyHeader
	Image struct {
		MediaID CDATA `xml:"MediaId"`
	} `xml:"Image"`
}

func NewImageReply(msg *Message, mediaID string) *ImageReply {
	reply := &ImageReply{
		ReplyHeader: newReplyHeader(msg, "image"),
	}
	reply.Image.MediaID = CDATA{mediaID}
	return reply
}

// VoiceReply is a passive voice answer referencing an uploaded media id
type VoiceReply struct {
	XMLName xml.Name `xml:"xml"`
	ReplyHeader
	Voice struct {
		MediaID CDATA `xml:"MediaId"`
	} `xml:"Voice"`
}

func NewVoiceReply(msg *Message, mediaID string) *VoiceReply {
	reply := &VoiceReply{
		ReplyHeader: newReplyHeader(msg, "voice"),
	}
	reply.Voice.MediaID = CDATA{mediaID}
	return reply
}

// Article is one entry of a news reply
type Article struct {
	Title       CDATA `xml:"Title"`
	Description CDATA `xml:"Description"`
	PicURL      CDATA `xml:"PicUrl"`
	URL         CDATA `xml:"Url"`
}

// NewsReply is a passive rich-media answer carrying up to eight articles
type NewsReply struct {
	XMLName xml.Name `xml:"xml"`
	ReplyHeader
	ArticleCount int       `xml:"ArticleCount"`
	Articles     []Article `xml:"Articles>item"`
}

func NewNewsReply(msg *Message, articles ...Article) *NewsReply {
	return &NewsReply{
		ReplyHeader:  newReplyHeader(msg, "news"),
		ArticleCount: len(articles),
		Articles:     articles,
	}
}

// RenderReply serializes a reply to the XML document the platform expects
func RenderReply(reply interface{}) (string, error) {
	out, err := xml.Marshal(reply)
	if err != nil {
		return "", fmt.Errorf("failed to render reply: %w", err)
	}

	return string(out), nil
}
