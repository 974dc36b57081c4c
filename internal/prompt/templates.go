// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import "text/template"

// baseContext opens every ideation prompt.
const baseContext = `You are an IPE research idea agent. Only propose design-level plans; do not run analyses, estimate models, scrape data, or claim results.
Focus on International Political Economy. Use DiD, SCM, Shift-Share for causal ideas, or ideal point/latent trait models for descriptive ideas.
Aim for agenda-setting, non-incremental ideas.`

// laneCatalog lists the research lanes an idea must be placed in.
const laneCatalog = `Lane catalog:
1) Financial Statecraft and Monetary Power
2) Sanctions, Enforcement, and Evasion Ecosystems
3) Global Production Networks, Chokepoints, and Strategic Interdependence
4) Trade Regimes, Industrial Policy, and Domestic Coalition Formation
5) Technology Controls, Dual-Use Goods, and Innovation Geopolitics
6) Debt, IMF Conditionality, and Crisis Politics
7) Energy, Critical Minerals, and the Political Economy of the Transition
8) Institutions Under Rivalry: Rules, Dispute Settlement, and Regime Fragmentation
9) Global Inequality, Tax, Illicit Flows, and Regulatory Arbitrage
10) Measurement of Alignment, Influence, and Dependence (Latent Traits / Ideal Points)`

var pitchTmpl = template.Must(template.New("pitch").Parse(`Produce a single idea dossier PITCH.md using this template. The output must begin with this header block, one field per line, with no bullet or heading markers:

{{range .Schema.Pitch.Headers}}{{.Key}}: {{.Hint}}
{{end}}
Then include:
- Working title: <title>
- One-sentence big claim: <claim>
- Theoretical puzzle + stakes (why it matters)
- Mechanism (bullets)
- Predictions (bullets; include at least one disconfirming pattern)
- Design family (DiD/SCM/Shift-Share/Ideal points) + why it fits
- Expected objections (top 3)
- Novelty statement (2-4 sentences)
- Kill criteria (what would make you abandon it)`))

var designTmpl = template.Must(template.New("design").Parse(`Produce DESIGN.md for the same idea using this template (design-only, no execution):
If causal:
- Research question (precise)
- Estimand
- Unit/time/treatment/outcome
- Identification strategy + assumptions
- Threats & fixes
- Diagnostics/falsification plan
- Robustness plan
- Scope conditions (where it shouldn't generalize)
If descriptive:
- Construct to be measured
- Behavioral data source + selection issues
- Model family (IRT/ideal-point variant)
- Handling of abstentions/missingness/agenda control
- Validation plan
- Interpretation limits`))

var dataPlanTmpl = template.Must(template.New("data").Parse(`Produce DATA_PLAN.md for the same idea using this template:
- Candidate datasets (with access notes)
- Key variables and constructions
- Merge keys and likely pain points
- Coverage (units, time)
- Risks + mitigation
- Feasibility score (high/med/low)`))

var positioningTmpl = template.Must(template.New("positioning").Parse(`Produce POSITIONING.md for the same idea using this template:
- 3-6 closest literatures or already-known explanations
- What is new (mechanism, measurement, identification, or synthesis)
- Referee objection paragraph + rebuttal`))

var nextStepsTmpl = template.Must(template.New("next_steps").Parse(`Produce NEXT_STEPS.md for the same idea using this template:
- Minimal execution checklist (what a human/team would do next)
- Most expensive uncertainty to resolve first
- Fast falsification plan (how to kill quickly if wrong)`))

var councilTmpl = template.Must(template.New("council").Parse(`Produce {{.Referees}} council memos ({{.RefereeRange}}) using this template per memo:
Verdict: <accept, revise, or reject, with a short reason>
Strengths (top 3)
Fatal flaws / biggest risks (top 3)
Required revisions (ranked, one bullet each)
Scores (one line per rubric item, formatted as "<item>: N/10"):
{{range .Schema.Scores.Thresholds}}- {{.Rubric}}
{{end}}
Return memos separated by "{{.Separator}}" lines and label each as "{{.FirstReferee}}" etc.`))

var gate1RetryTmpl = template.Must(template.New("gate1_retry").Parse(`The draft below is missing required header fields.

Rewrite the pitch to include this header block at the very top, one field per line, with no bullet or heading markers:

{{range .Schema.Pitch.Headers}}{{.Key}}: {{.Hint}}
{{end}}
Then follow the PITCH template exactly.

Do not omit any required fields.

Return only the corrected PITCH.md content.

Draft to fix:

{{.Draft}}`))
