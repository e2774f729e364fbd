package graph

// TemplateParameter fills one positional placeholder of a template component.
type TemplateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TemplateComponent groups the parameters for one section (header, body, button).
type TemplateComponent struct {
	Type       string              `json:"type"`
	Parameters []TemplateParameter `json:"parameters"`
}

type TemplateMessage struct {
	To           string
	Name         string
	LanguageCode string
	Components   []TemplateComponent
}

// Template is one entry of the business account's template catalog.
type Template struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"name"`
	Language   string                   `json:"language"`
	Status     string                   `json:"status"`
	Category   string                   `json:"category"`
	Components []TemplateCatalogSection `json:"components"`
}

type TemplateCatalogSection struct {
	Type   string `json:"type"`
	Format string `json:"format,omitempty"`
	Text   string `json:"text,omitempty"`
}

// AppToken is the result of a client_credentials exchange.
type AppToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type whatsAppTextRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             whatsAppTextBody `json:"text"`
}

type whatsAppTextBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type whatsAppTemplateRequest struct {
	MessagingProduct string              `json:"messaging_product"`
	To               string              `json:"to"`
	Type             string              `json:"type"`
	Template         whatsAppTemplateRef `json:"template"`
}

type whatsAppTemplateRef struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []TemplateComponent `json:"components,omitempty"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type whatsAppSendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type messengerSendRequest struct {
	Recipient     messengerRecipient `json:"recipient"`
	MessagingType string             `json:"messaging_type"`
	Message       messengerText      `json:"message"`
}

type messengerRecipient struct {
	ID string `json:"id"`
}

type messengerText struct {
	Text string `json:"text"`
}

type messengerSendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

type templateCatalogResponse struct {
	Data   []Template `json:"data"`
	Paging struct {
		Cursors struct {
			Before string `json:"before"`
			After  string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}
