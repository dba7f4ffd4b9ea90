package flickr

import (
	"encoding/json"
	"strconv"
)

// Content decodes Flickr's {"_content": "..."} wrapper objects into a plain
// string. Bare strings and missing/malformed values decode without error so
// consumers never perform presence checks on raw maps.
type Content string

func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Content(s)
		return nil
	}
	var wrap struct {
		Content string `json:"_content"`
	}
	if err := json.Unmarshal(data, &wrap); err != nil {
		*c = ""
		return nil
	}
	*c = Content(wrap.Content)
	return nil
}

func (c Content) String() string { return string(c) }

// Number tolerates numeric fields that Flickr serves as either JSON numbers
// or strings ("pages":5 vs "total":"95").
type Number int

func (n *Number) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*n = Number(i)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*n = 0
		return nil
	}
	parsed, err := strconv.Atoi(s)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(parsed)
	return nil
}

func (n Number) Int() int { return int(n) }

// TagList flattens the tags.tag[]._content nesting into a string slice.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	var wrap struct {
		Tag []struct {
			Content string `json:"_content"`
			Raw     string `json:"raw"`
		} `json:"tag"`
	}
	if err := json.Unmarshal(data, &wrap); err != nil {
		*t = nil
		return nil
	}
	tags := make([]string, 0, len(wrap.Tag))
	for _, tag := range wrap.Tag {
		if tag.Content != "" {
			tags = append(tags, tag.Content)
		} else if tag.Raw != "" {
			tags = append(tags, tag.Raw)
		}
	}
	*t = tags
	return nil
}

// User is the authenticated caller's identity (flickr.test.login).
type User struct {
	NSID     string  `json:"id"`
	Username Content `json:"username"`
}

// Photo is one entry of a photo listing. The URL fields come from the
// `extras` request parameter and may be empty for older uploads.
type Photo struct {
	ID           string  `json:"id"`
	Owner        string  `json:"owner"`
	Secret       string  `json:"secret"`
	Title        string  `json:"title"`
	Description  Content `json:"description"`
	ThumbnailURL string  `json:"url_q"`
	MediumURL    string  `json:"url_m"`
	DateUpload   string  `json:"dateupload"`
	DateTaken    string  `json:"datetaken"`
	OwnerName    string  `json:"ownername"`
	IsPublic     Number  `json:"ispublic"`
	IsFriend     Number  `json:"isfriend"`
	IsFamily     Number  `json:"isfamily"`
}

// PhotoPage is a paginated photo listing. Pages is upstream's total page
// count, passed through unmodified for pagination controls.
type PhotoPage struct {
	Photos []Photo `json:"photo"`
	Page   Number  `json:"page"`
	Pages  Number  `json:"pages"`
	Total  Number  `json:"total"`
}

// PhotoOwner identifies the photo's owner in a detail response.
type PhotoOwner struct {
	NSID     string `json:"nsid"`
	Username string `json:"username"`
	RealName string `json:"realname"`
}

// PhotoDetails is the normalized flickr.photos.getInfo response.
type PhotoDetails struct {
	ID           string     `json:"id"`
	Secret       string     `json:"secret"`
	Title        Content    `json:"title"`
	Description  Content    `json:"description"`
	Views        string     `json:"views"`
	Comments     Content    `json:"comments"`
	Tags         TagList    `json:"tags"`
	DateUploaded string     `json:"dateuploaded"`
	Owner        PhotoOwner `json:"owner"`
}

// Contact is one entry of the authenticated user's contact list.
type Contact struct {
	NSID       string `json:"nsid"`
	Username   string `json:"username"`
	RealName   string `json:"realname"`
	PathAlias  string `json:"path_alias"`
	IconServer Number `json:"iconserver"`
	IconFarm   Number `json:"iconfarm"`
	IsFriend   Number `json:"friend"`
	IsFamily   Number `json:"family"`
}

// Size is one available rendition of a photo.
type Size struct {
	Label  string `json:"label"`
	Width  Number `json:"width"`
	Height Number `json:"height"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

// Group is one group the user is a member of.
type Group struct {
	NSID      string `json:"nsid"`
	Name      string `json:"name"`
	Members   Number `json:"members"`
	PoolCount Number `json:"pool_count"`
}

// Privacy selects which visibility tier of the user's own photos to list.
type Privacy int

const (
	PrivacyPublic        Privacy = 1
	PrivacyFriends       Privacy = 2
	PrivacyFamily        Privacy = 3
	PrivacyFriendsFamily Privacy = 4
	PrivacyPrivate       Privacy = 5
)

// ParsePrivacy maps the query-string names to the upstream enumeration.
// Unknown values fall back to public.
func ParsePrivacy(s string) Privacy {
	switch s {
	case "friends":
		return PrivacyFriends
	case "family":
		return PrivacyFamily
	case "friendsfamily":
		return PrivacyFriendsFamily
	case "private":
		return PrivacyPrivate
	default:
		return PrivacyPublic
	}
}
