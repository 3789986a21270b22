package webhook

// Typed view of the WhatsApp Cloud API webhook schema. Every nested object
// is a pointer so a partial or malformed payload decodes to nils instead of
// failing; the extractor treats nil as "field absent".

const BusinessAccountObject = "whatsapp_business_account"

type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value *Value `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         *Metadata `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
	Statuses         []Status  `json:"statuses"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string          `json:"wa_id"`
	Profile *ContactProfile `json:"profile"`
}

type ContactProfile struct {
	Name string `json:"name"`
}

// Message is one inbound message event. Exactly one of the kind objects is
// expected to be set, discriminated by Type; none of them is guaranteed.
type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"` // epoch seconds, as a string
	Type      string `json:"type"`

	Text        *Text        `json:"text"`
	Image       *Media       `json:"image"`
	Video       *Media       `json:"video"`
	Document    *Document    `json:"document"`
	Audio       *Media       `json:"audio"`
	Sticker     *Media       `json:"sticker"`
	Reaction    *Reaction    `json:"reaction"`
	Interactive *Interactive `json:"interactive"`
	Location    *Location    `json:"location"`
	Contacts    []ContactCard `json:"contacts"`
	System      *System      `json:"system"`

	Context *Context `json:"context"`
}

type Text struct {
	Body string `json:"body"`
}

type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

type Document struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

type Reaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type Interactive struct {
	Type        string `json:"type"`
	ButtonReply *Reply `json:"button_reply"`
	ListReply   *Reply `json:"list_reply"`
}

type Reply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
}

type ContactCard struct {
	Name *ContactCardName `json:"name"`
}

type ContactCardName struct {
	FormattedName string `json:"formatted_name"`
}

type System struct {
	Body string `json:"body"`
	Type string `json:"type"`
}

// Context is present when the message is a reply to another message.
type Context struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

// Status is one delivery-status event for an outgoing message.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}
