package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Product brands every rendered mail.
type Product struct {
	Name string
	Link string
}

const htmlLayout = `<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f2f4f6;font-family:Helvetica,Arial,sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0" role="presentation">
    <tr><td align="center" style="padding:25px 0;">
      <a href="{{.Product.Link}}" style="font-size:16px;font-weight:bold;color:#a8aaaf;text-decoration:none;">{{.Product.Name}}</a>
    </td></tr>
    <tr><td align="center">
      <table width="570" cellpadding="0" cellspacing="0" role="presentation" style="background:#ffffff;padding:35px;">
        <tr><td>
          <h1 style="font-size:19px;color:#2f3133;">Hi {{.Content.Name}},</h1>
          <p style="font-size:16px;color:#74787e;">{{.Content.Intro}}</p>
          <p style="font-size:16px;color:#74787e;">{{.Content.Instruction}}</p>
          <p style="text-align:center;">
            <a href="{{.Content.Link}}" target="_blank"
               style="display:inline-block;background:{{.Content.ButtonColor}};color:#ffffff;padding:10px 18px;border-radius:3px;text-decoration:none;">{{.Content.ButtonText}}</a>
          </p>
          <p style="font-size:16px;color:#74787e;">{{.Content.Outro}}</p>
          <p style="font-size:16px;color:#74787e;">Yours truly,<br>{{.Product.Name}}</p>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>
`

const textLayout = `Hi {{.Content.Name}},

{{.Content.Intro}}

{{.Content.Instruction}}
{{.Content.Link}}

{{.Content.Outro}}

Yours truly,
{{.Product.Name}}
`

// Renderer produces the HTML and plain-text alternatives of a mail.
type Renderer struct {
	product Product
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

// NewRenderer parses the mail layouts for product.
func NewRenderer(product Product) (*Renderer, error) {
	html, err := htmltemplate.New("html").Parse(htmlLayout)
	if err != nil {
		return nil, fmt.Errorf("parse html layout: %w", err)
	}
	text, err := texttemplate.New("text").Parse(textLayout)
	if err != nil {
		return nil, fmt.Errorf("parse text layout: %w", err)
	}
	return &Renderer{product: product, html: html, text: text}, nil
}

type layoutData struct {
	Product Product
	Content Content
}

// Render returns the HTML and plain-text bodies for c.
func (r *Renderer) Render(c Content) (string, string, error) {
	if c.ButtonColor == "" {
		c.ButtonColor = defaultButtonColor
	}
	data := layoutData{Product: r.product, Content: c}

	var html, text bytes.Buffer
	if err := r.html.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	if err := r.text.Execute(&text, data); err != nil {
		return "", "", fmt.Errorf("render text: %w", err)
	}
	return html.String(), text.String(), nil
}
