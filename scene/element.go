package scene

// Element is one drawn shape in a scene. Elements are soft-deleted: a delete
// flips IsDeleted and bumps Version, the element stays in the snapshot so that
// undo history and late-joining clients keep a consistent view. Physical
// removal happens only through a full scene reset or replacement.
type Element struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Version   int    `json:"version"`
	IsDeleted bool   `json:"isDeleted"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Angle  float64 `json:"angle,omitempty"`

	StrokeColor     string  `json:"strokeColor,omitempty"`
	BackgroundColor string  `json:"backgroundColor,omitempty"`
	FillStyle       string  `json:"fillStyle,omitempty"`
	StrokeWidth     float64 `json:"strokeWidth,omitempty"`
	Roughness       float64 `json:"roughness,omitempty"`
	Opacity         float64 `json:"opacity,omitempty"`

	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`

	Locked bool `json:"locked,omitempty"`
}

// Patch carries a partial element update. Nil fields are left untouched;
// set fields are merged into the stored element by Store.UpdateElement,
// which also bumps Version by exactly one.
type Patch struct {
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	Angle  *float64 `json:"angle,omitempty"`

	StrokeColor     *string  `json:"strokeColor,omitempty"`
	BackgroundColor *string  `json:"backgroundColor,omitempty"`
	FillStyle       *string  `json:"fillStyle,omitempty"`
	StrokeWidth     *float64 `json:"strokeWidth,omitempty"`
	Roughness       *float64 `json:"roughness,omitempty"`
	Opacity         *float64 `json:"opacity,omitempty"`

	Text       *string  `json:"text,omitempty"`
	FontSize   *float64 `json:"fontSize,omitempty"`
	FontFamily *string  `json:"fontFamily,omitempty"`

	Locked    *bool `json:"locked,omitempty"`
	IsDeleted *bool `json:"isDeleted,omitempty"`
}

// apply merges the patch into e. Version handling is the store's job.
func (p Patch) apply(e *Element) {
	if p.X != nil {
		e.X = *p.X
	}
	if p.Y != nil {
		e.Y = *p.Y
	}
	if p.Width != nil {
		e.Width = *p.Width
	}
	if p.Height != nil {
		e.Height = *p.Height
	}
	if p.Angle != nil {
		e.Angle = *p.Angle
	}
	if p.StrokeColor != nil {
		e.StrokeColor = *p.StrokeColor
	}
	if p.BackgroundColor != nil {
		e.BackgroundColor = *p.BackgroundColor
	}
	if p.FillStyle != nil {
		e.FillStyle = *p.FillStyle
	}
	if p.StrokeWidth != nil {
		e.StrokeWidth = *p.StrokeWidth
	}
	if p.Roughness != nil {
		e.Roughness = *p.Roughness
	}
	if p.Opacity != nil {
		e.Opacity = *p.Opacity
	}
	if p.Text != nil {
		e.Text = *p.Text
	}
	if p.FontSize != nil {
		e.FontSize = *p.FontSize
	}
	if p.FontFamily != nil {
		e.FontFamily = *p.FontFamily
	}
	if p.Locked != nil {
		e.Locked = *p.Locked
	}
	if p.IsDeleted != nil {
		e.IsDeleted = *p.IsDeleted
	}
}
