package indicators

type PruningIndicators struct {
	Tipo                    string `json:"tipo" validate:"required,oneof=formacion mantenimiento sanitaria rehabilitacion"`
	PlantasIntervenidas     int    `json:"plantasIntervenidas" validate:"required,min=1"`
	HerramientaDesinfectada *bool  `json:"herramientaDesinfectada,omitempty"`
	Observaciones           string `json:"observaciones,omitempty" validate:"max=500"`
}

func (*PruningIndicators) ActivityType() string { return Pruning }

type pruningSchema struct{}

func (pruningSchema) New() Indicators    { return &PruningIndicators{} }
func (pruningSchema) SummaryKey() string { return "resumenPoda" }
func (pruningSchema) Summarize(i Indicators) Summary {
	p := i.(*PruningIndicators)
	return Summary{"tipo": p.Tipo, "plantas": p.PlantasIntervenidas}
}

type WeedingIndicators struct {
	Fecha         string   `json:"fecha" validate:"required,datetime=2006-01-02"`
	Metodo        string   `json:"metodo" validate:"required,oneof=manual mecanico quimico"`
	CoberturaPct  *float64 `json:"coberturaPct" validate:"required,gte=0,lte=100"`
	AlturaMaleza  *float64 `json:"alturaMalezaCm,omitempty" validate:"omitempty,gte=0"`
	Observaciones string   `json:"observaciones,omitempty" validate:"max=500"`
}

func (*WeedingIndicators) ActivityType() string { return Weeding }

type weedingSchema struct{}

func (weedingSchema) New() Indicators    { return &WeedingIndicators{} }
func (weedingSchema) SummaryKey() string { return "resumenMaleza" }
func (weedingSchema) Summarize(i Indicators) Summary {
	w := i.(*WeedingIndicators)
	return Summary{"fecha": w.Fecha, "metodo": w.Metodo, "cobertura": *w.CoberturaPct}
}

type NutritionIndicators struct {
	FechaAplicacion string   `json:"fechaAplicacion" validate:"required,datetime=2006-01-02"`
	Metodo          string   `json:"metodo" validate:"required,oneof=edafica foliar fertirriego"`
	PlantasTratadas int      `json:"plantasTratadas" validate:"required,min=1"`
	DosisPorPlantaG *float64 `json:"dosisPorPlantaG,omitempty" validate:"omitempty,gt=0"`
	HumedadSuelo    string   `json:"humedadSuelo,omitempty" validate:"omitempty,oneof=seco adecuado saturado"`
}

func (*NutritionIndicators) ActivityType() string { return Nutrition }

type nutritionSchema struct{}

func (nutritionSchema) New() Indicators    { return &NutritionIndicators{} }
func (nutritionSchema) SummaryKey() string { return "resumenNutricion" }
func (nutritionSchema) Summarize(i Indicators) Summary {
	n := i.(*NutritionIndicators)
	return Summary{"fecha": n.FechaAplicacion, "metodo": n.Metodo, "plantas": n.PlantasTratadas}
}

type PhytosanitaryIndicators struct {
	Fecha               string   `json:"fecha" validate:"required,datetime=2006-01-02"`
	Objetivo            string   `json:"objetivo" validate:"required,max=120"`
	Metodo              string   `json:"metodo" validate:"required,oneof=aspersion drench cebo manual"`
	SeveridadPct        *float64 `json:"severidadPct" validate:"required,gte=0,lte=100"`
	PeriodoCarenciaDias *int     `json:"periodoCarenciaDias,omitempty" validate:"omitempty,gte=0"`
	EquipoProteccion    *bool    `json:"equipoProteccion,omitempty"`
}

func (*PhytosanitaryIndicators) ActivityType() string { return Phytosanitary }

type phytosanitarySchema struct{}

func (phytosanitarySchema) New() Indicators    { return &PhytosanitaryIndicators{} }
func (phytosanitarySchema) SummaryKey() string { return "resumenFitosanitario" }
func (phytosanitarySchema) Summarize(i Indicators) Summary {
	p := i.(*PhytosanitaryIndicators)
	return Summary{"fecha": p.Fecha, "objetivo": p.Objetivo, "severidad": *p.SeveridadPct}
}

type BaggingIndicators struct {
	Fecha             string   `json:"fecha" validate:"required,datetime=2006-01-02"`
	ColorCinta        string   `json:"colorCinta" validate:"required,oneof=rojo azul verde amarillo blanco negro cafe morado"`
	RacimosEnfundados int      `json:"racimosEnfundados" validate:"required,min=1"`
	PerdidasPct       *float64 `json:"perdidasPct,omitempty" validate:"omitempty,gte=0,lte=100"`
}

func (*BaggingIndicators) ActivityType() string { return Bagging }

type baggingSchema struct{}

func (baggingSchema) New() Indicators    { return &BaggingIndicators{} }
func (baggingSchema) SummaryKey() string { return "resumenEnfunde" }
func (baggingSchema) Summarize(i Indicators) Summary {
	b := i.(*BaggingIndicators)
	return Summary{"fecha": b.Fecha, "color": b.ColorCinta, "racimos": b.RacimosEnfundados}
}
