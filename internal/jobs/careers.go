package jobs

import (
	"fmt"
	"sort"
)

// Catalog is the fixed set of searchable careers keyed by career key.
type Catalog map[string]Career

// DefaultCatalog returns the built-in career catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		"mecatronica":                 {Keywords: []string{"ingeniero mecatrónico", "mecatrónica", "automatización", "PLC", "robótica"}, Icon: "🤖"},
		"industrial":                  {Keywords: []string{"ingeniero industrial", "mejora continua", "lean manufacturing", "producción"}, Icon: "🏭"},
		"mecanica":                    {Keywords: []string{"ingeniero mecánico", "diseño mecánico", "CAD", "manufactura"}, Icon: "⚙️"},
		"tecnologias_computacionales": {Keywords: []string{"desarrollador", "software", "programador", "full stack", "backend", "frontend"}, Icon: "💻"},
		"civil":                       {Keywords: []string{"ingeniero civil", "construcción", "estructuras", "obra"}, Icon: "🏗️"},
		"biotecnologia":               {Keywords: []string{"biotecnología", "laboratorio", "microbiología", "calidad"}, Icon: "🧬"},
		"finanzas":                    {Keywords: []string{"analista financiero", "finanzas", "contabilidad", "tesorería"}, Icon: "📊"},
		"administracion":              {Keywords: []string{"administrador", "gestión", "coordinador", "gerente"}, Icon: "📋"},
		"transformacion_negocios":     {Keywords: []string{"business analyst", "consultor", "transformación digital"}, Icon: "🚀"},
		"negocios_internacionales":    {Keywords: []string{"comercio exterior", "importación", "exportación", "logística"}, Icon: "🌎"},
		"mercadotecnia":               {Keywords: []string{"marketing", "community manager", "redes sociales", "publicidad"}, Icon: "📱"},
		"arquitectura":                {Keywords: []string{"arquitecto", "diseño arquitectónico", "BIM", "Revit"}, Icon: "🏛️"},
		"derecho":                     {Keywords: []string{"abogado", "legal", "jurídico", "licenciado en derecho"}, Icon: "⚖️"},
	}
}

// Lookup returns the career for key or a ValidationError.
func (c Catalog) Lookup(key string) (Career, error) {
	if key == "" {
		return Career{}, &ValidationError{Field: "career", Err: fmt.Errorf("%w: parameter is required", ErrUnknownCareer)}
	}
	career, ok := c[key]
	if !ok {
		return Career{}, &ValidationError{Field: "career", Err: fmt.Errorf("%w: %q", ErrUnknownCareer, key)}
	}
	return career, nil
}

// Keys returns the career keys in sorted order.
func (c Catalog) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate ensures every career has a primary keyword.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("career catalog is empty")
	}
	for _, key := range c.Keys() {
		if c[key].PrimaryKeyword() == "" {
			return fmt.Errorf("career %q has no keywords", key)
		}
	}
	return nil
}
