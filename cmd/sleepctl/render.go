package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/api"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence/migrations"
)

var (
	ok    = color.New(color.FgGreen, color.Bold)
	warn  = color.New(color.FgRed)
	muted = color.New(color.FgHiBlack)
)

var qualityColors = map[domain.Quality]*color.Color{
	domain.QualityBad:  color.New(color.FgRed),
	domain.QualityOK:   color.New(color.FgYellow),
	domain.QualityGood: color.New(color.FgGreen),
}

func renderQuality(q domain.Quality) string {
	if c, found := qualityColors[q]; found {
		return c.Sprint(q.String())
	}
	return q.String()
}

func renderInterval(in domain.SleepInterval) string {
	return fmt.Sprintf("%s  %s %s -> %s %s  slept %s  %s",
		muted.Sprint(in.ID),
		in.Start.Format(api.DateLayout), domain.TimeOfDayOf(in.Start),
		in.End.Format(api.DateLayout), domain.TimeOfDayOf(in.End),
		in.SleepTime(),
		renderQuality(in.Quality),
	)
}

func renderAverage(a domain.AggregateResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "user %d, %s - %s (%d nights)\n",
		a.UserID, a.WindowStart.Format(api.DateLayout), a.WindowEnd.Format(api.DateLayout), a.Samples)
	fmt.Fprintf(&b, "  bedtime  %s\n", a.AvgStart)
	fmt.Fprintf(&b, "  wake-up  %s\n", a.AvgEnd)
	fmt.Fprintf(&b, "  slept    %s\n", a.AvgSleepTime)
	fmt.Fprintf(&b, "  quality  %s %d  %s %d  %s %d\n",
		renderQuality(domain.QualityBad), a.Qualities.Bad,
		renderQuality(domain.QualityOK), a.Qualities.OK,
		renderQuality(domain.QualityGood), a.Qualities.Good,
	)
	return b.String()
}

func renderStatus(s migrations.Status) string {
	state := ok.Sprint("current")
	switch {
	case s.Dirty:
		state = warn.Sprint("dirty")
	case s.Version < s.Latest:
		state = warn.Sprint("behind")
	case s.Version > s.Latest:
		state = warn.Sprint("ahead")
	}
	return fmt.Sprintf("schema version %d of %d: %s", s.Version, s.Latest, state)
}
