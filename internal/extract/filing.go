package extract

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/etp-tracker/internal/model"
	"github.com/sells-group/etp-tracker/internal/parse"
)

// evidence accumulates what the text sources of one filing say.
type evidence struct {
	headers      []parse.HeaderClass
	date         parse.DateEvidence
	texts        []string
	bodyNames    []string
	expenseRatio *float64
}

// addText records a plain-text body for ticker search, name matching, and
// date evidence.
func (ev *evidence) addText(plain string) {
	if plain == "" {
		return
	}
	ev.texts = append(ev.texts, plain)
	ev.bodyNames = append(ev.bodyNames, parse.FundNames(plain)...)
	ev.date.Merge(parse.FindEffectiveDate(plain))
}

// ExtractFiling produces the facts of one filing. A failure to fetch the
// submission text or the primary body is returned as an error; everything
// else degrades to fewer facts.
func (e *Extractor) ExtractFiling(ctx context.Context, f model.Filing) ([]model.FundFact, error) {
	strategy := e.Strategy(f)
	var (
		ev  *evidence
		err error
	)
	if strategy == model.StrategyHeaderOnly {
		ev, err = e.headerEvidence(ctx, f)
	} else {
		ev, err = e.fullEvidence(ctx, f)
	}
	if err != nil {
		return nil, err
	}
	return buildFacts(f, strategy, ev), nil
}

func (e *Extractor) headerEvidence(ctx context.Context, f model.Filing) (*evidence, error) {
	hdr, err := e.fetch.FetchHeaderOnly(ctx, f.SubmissionLink)
	if err != nil {
		return nil, eris.Wrap(err, "extract: submission header")
	}
	ev := &evidence{headers: parse.ParseHeader(hdr)}
	ev.date.Merge(parse.FindEffectiveDate(hdr))
	return ev, nil
}

func (e *Extractor) fullEvidence(ctx context.Context, f model.Filing) (*evidence, error) {
	txt, err := e.fetch.FetchText(ctx, f.SubmissionLink)
	if err != nil {
		return nil, eris.Wrap(err, "extract: submission text")
	}
	ev := &evidence{headers: parse.ParseHeader(txt)}
	if txt != "" {
		ev.texts = append(ev.texts, txt)
		ev.date.Merge(parse.FindEffectiveDate(txt))
	}
	for _, doc := range parse.Documents(txt) {
		if doc.IsProspectus() {
			ev.addText(doc.PlainText())
		}
	}

	switch {
	case parse.IsHTMLName(f.PrimaryLink):
		body, err := e.fetch.FetchText(ctx, f.PrimaryLink)
		if err != nil {
			return nil, eris.Wrap(err, "extract: primary document")
		}
		ev.addText(parse.HTMLToText(body))
		if f.InlineXBRL {
			applyXBRL(ev, parse.ParseInlineXBRL(body))
		}
	case parse.IsPDFName(f.PrimaryLink):
		body, err := e.fetch.FetchBytes(ctx, f.PrimaryLink)
		if err != nil {
			return nil, eris.Wrap(err, "extract: primary document")
		}
		text, err := e.ocr.ExtractText(ctx, body)
		if err != nil {
			e.log.Warn("extract: pdf text extraction failed",
				zap.String("accession", f.Accession),
				zap.String("url", f.PrimaryLink),
				zap.Error(err),
			)
		}
		ev.addText(text)
	}
	return ev, nil
}

func applyXBRL(ev *evidence, x parse.XBRLFacts) {
	if d := x.EffectiveDate(); d != nil {
		ev.date.Merge(parse.DateEvidence{Date: d, Confidence: model.ConfidenceIXBRL})
	}
	switch {
	case x.NetExpenseRatio != nil:
		ev.expenseRatio = x.NetExpenseRatio
	case x.ExpenseRatio != nil:
		ev.expenseRatio = x.ExpenseRatio
	}
}

// buildFacts emits one fact per header class, or a single placeholder when
// the header declared none.
func buildFacts(f model.Filing, strategy string, ev *evidence) []model.FundFact {
	base := model.FundFact{
		Form:           f.Form,
		FilingDate:     f.FilingDate,
		Accession:      f.Accession,
		PrimaryLink:    f.PrimaryLink,
		SubmissionLink: f.SubmissionLink,
		Registrant:     f.Registrant,
		CIK:            f.CIK,
		EffectiveDate:  ev.date.Date,
		DateConfidence: ev.date.Confidence,
		Delaying:       ev.date.Delaying,
		Strategy:       strategy,
		ExpenseRatio:   ev.expenseRatio,
	}
	if len(ev.headers) == 0 {
		base.ExtractedFrom = model.SourceNone
		return []model.FundFact{base}
	}

	out := make([]model.FundFact, 0, len(ev.headers))
	for _, h := range ev.headers {
		fact := base
		fact.SeriesID = h.SeriesID
		fact.SeriesName = h.SeriesName
		fact.ClassID = h.ClassID
		fact.ClassName = h.ClassName
		fact.Ticker = h.Ticker
		fact.ExtractedFrom = model.SourceSGML

		name := h.Name()
		if ticker, src := parse.TickerFor(name, ev.texts); ticker != "" {
			fact.Ticker = ticker
			fact.ExtractedFrom = model.SourceSGML + "|" + src
		}
		fact.ProspectusName = parse.MatchProspectusName(name, ev.bodyNames)
		out = append(out, fact)
	}
	return out
}
