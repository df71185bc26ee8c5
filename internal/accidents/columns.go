package accidents

// Raw column names as they appear in the source CSV.
const (
	ColDate     = "Fecha del Accidente"
	ColClass    = "Clase de Accidente"
	ColSeverity = "Gravedad"
	ColHour     = "Hora"
)

// Column names after Clean. Gravedad keeps its raw name.
const (
	ColCleanDate     = "Fecha_accidente"
	ColCleanClass    = "Clase_accidente"
	ColCleanSeverity = ColSeverity
)

// DroppedColumns are removed by Clean. The IPAT header carries a trailing
// space in the source file.
var DroppedColumns = []string{
	"Informes Policiales de Accidentes de Tránsito (IPAT) ",
	"Dirección",
	"Barrio",
	"Comuna",
	"Corregimiento",
	"Hipótesis",
	"Hipótesis 2",
	"Motocicleta",
	"Mes",
}

// Rename maps one raw column name to its normalized identifier.
type Rename struct {
	From string
	To   string
}

// RenamedColumns is applied last by Clean, in this order.
var RenamedColumns = []Rename{
	{ColDate, ColCleanDate},
	{"Género", "Genero"},
	{ColClass, ColCleanClass},
	{"Choque Con", "Choque_con"},
	{"Clase de Vehículo 1", "Clase_vehiculo_1"},
	{"Servicio", "Servicio_vehiculo_1"},
	{"Gravedad Conductor", "Gravedad_Conductor_vehiculo_1"},
	{"Embriaguez", "Embriaguez_vehiculo_1"},
	{"Grado", "Grado_vehiculo_1"},
	{"Clase de Vehículo 2", "Clase_vehiculo_2"},
	{"Servicio 2", "Servicio_vehiculo_2"},
	{"Gravedad Conductor 2", "Gravedad_conductor_vehiculo_2"},
	{"Embriaguez 2", "Embriaguez_vehiculo_2"},
	{"Grado 2", "Grado_vehiculo_2"},
}

// Only the labels that actually change are listed; canonical labels map to
// themselves implicitly.
var classUnification = map[string]string{
	"CAÍDA":      "CAIDA OCUPANTE",
	"INCENERADO": "INCENDIO",
	"OTRO":       "OTROS",
}

var severityUnification = map[string]string{
	"CON MUERTO": "MUERTOS",
	"MUERTO":     "MUERTOS",
	"HERIDO":     "HERIDOS",
}

// CanonicalClasses are the targets of the class unification table.
var CanonicalClasses = []string{"CAIDA OCUPANTE", "INCENDIO", "OTROS"}

// CanonicalSeverities are the targets of the severity unification table.
var CanonicalSeverities = []string{"HERIDOS", "MUERTOS"}

// UnifyClass maps an accident class variant onto its canonical label.
// Labels outside the table pass through unchanged.
func UnifyClass(v string) string {
	if to, ok := classUnification[v]; ok {
		return to
	}
	return v
}

// UnifySeverity maps a severity variant onto its canonical label.
// Labels outside the table pass through unchanged.
func UnifySeverity(v string) string {
	if to, ok := severityUnification[v]; ok {
		return to
	}
	return v
}
