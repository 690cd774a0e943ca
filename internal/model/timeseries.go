package model

// Point is one sample of a derived time series. Value is either a scalar
// (float64) or a per-channel bundle ([]any).
type Point struct {
	Timestamp float64
	Value     any
}

// TimeSeries is an ordered sequence of per-timestamp value bundles.
type TimeSeries struct {
	Points []Point
}

// Len returns the number of points.
func (ts *TimeSeries) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.Points)
}

// Values returns the timestamp-stripped values in order.
func (ts *TimeSeries) Values() []any {
	if ts == nil {
		return nil
	}
	values := make([]any, len(ts.Points))
	for i, p := range ts.Points {
		values[i] = p.Value
	}
	return values
}

// Timestamps returns the timestamp axis in order.
func (ts *TimeSeries) Timestamps() []float64 {
	if ts == nil {
		return nil
	}
	stamps := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		stamps[i] = p.Timestamp
	}
	return stamps
}

// Slice returns the half-open window [start, end) as a new series.
// Bounds are clamped to the series length.
func (ts *TimeSeries) Slice(start, end int) *TimeSeries {
	if ts == nil {
		return nil
	}
	if start < 0 {
		start = 0
	}
	if end > len(ts.Points) {
		end = len(ts.Points)
	}
	if start >= end {
		return &TimeSeries{}
	}
	return &TimeSeries{Points: ts.Points[start:end]}
}

// ZipChannels builds a TimeSeries from raw channels. A single channel yields
// scalar values; multiple channels yield per-timestamp bundles in channel order.
func ZipChannels(raw *RawData, channels []string) (*TimeSeries, error) {
	series := &TimeSeries{}
	stamps := raw.Timestamps()

	columns := make([][]float64, len(channels))
	for i, name := range channels {
		samples, ok := raw.Channel(name)
		if !ok {
			return nil, &missingChannelError{Name: name}
		}
		columns[i] = samples
	}

	series.Points = make([]Point, len(stamps))
	for i := range stamps {
		var value any
		if len(columns) == 1 {
			value = columns[0][i]
		} else {
			bundle := make([]any, len(columns))
			for c, col := range columns {
				bundle[c] = col[i]
			}
			value = bundle
		}
		series.Points[i] = Point{Timestamp: stamps[i], Value: value}
	}

	return series, nil
}

type missingChannelError struct {
	Name string
}

func (e *missingChannelError) Error() string {
	return "channel not present in raw data: " + e.Name
}
