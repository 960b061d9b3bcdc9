/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"io"
	"strconv"

	"github.com/Seednode/gamenight/internal/signup"
	"github.com/a-h/templ"
)

const pageTimeLayout = "Monday, January 2 at 15:04"

type pageData struct {
	Prefix   string
	Version  string
	Favicon  string
	View     signup.View
	OpensAt  string
	ClosesAt string
	Flash    string
	FlashOK  bool
	Name     string
}

func newPageData(cfg *Config, view signup.View) pageData {
	return pageData{
		Prefix:   cfg.prefix,
		Version:  releaseVersion,
		Favicon:  getFavicon(cfg),
		View:     view,
		OpensAt:  view.OpensAt.Format(pageTimeLayout),
		ClosesAt: view.ClosesAt.Format(pageTimeLayout),
	}
}

// markup writes raw HTML and escaped text, keeping the first error.
type markup struct {
	w   io.Writer
	err error
}

func (m *markup) raw(s string) {
	if m.err != nil {
		return
	}
	_, m.err = io.WriteString(m.w, s)
}

func (m *markup) text(s string) {
	m.raw(templ.EscapeString(s))
}

func (m *markup) url(s string) {
	m.raw(templ.EscapeString(string(templ.URL(s))))
}

func (m *markup) component(ctx context.Context, c templ.Component) {
	if m.err != nil {
		return
	}
	m.err = c.Render(ctx, m.w)
}

func signupPage(data pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := &markup{w: w}

		m.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		m.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		m.component(ctx, templ.Raw(data.Favicon))
		m.raw(`<link rel="stylesheet" href="`)
		m.url(data.Prefix + "/assets/app.css")
		m.raw(`"><script src="`)
		m.url(data.Prefix + "/assets/app.js")
		m.raw(`" defer></script><title>Game Night</title></head><body data-prefix="`)
		m.text(data.Prefix)
		m.raw(`"><main>`)

		m.component(ctx, pageBanner(data))
		m.component(ctx, flashMessage(data.Flash, data.FlashOK))
		m.component(ctx, seatList(data.View))
		m.component(ctx, priorityList(data.View))
		m.component(ctx, signupForm(data.Prefix, data.Name))
		m.component(ctx, pageFooter(data.Prefix, data.Version))

		m.raw(`</main></body></html>`)

		return m.err
	})
}

func pageBanner(data pageData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		m := &markup{w: w}

		m.raw(`<header><h1>Game Night</h1>`)
		if data.View.Open {
			m.raw(`<p id="banner" class="banner open">Registration is open until `)
			m.text(data.ClosesAt)
		} else {
			m.raw(`<p id="banner" class="banner closed">Registration opens `)
			m.text(data.OpensAt)
		}
		m.raw(`.</p><p id="status" class="status" data-state="`)
		m.text(string(data.View.State))
		m.raw(`">`)
		m.text(data.View.Message)
		m.raw(`</p></header>`)

		return m.err
	})
}

func flashMessage(message string, ok bool) templ.Component {
	if message == "" {
		return templ.NopComponent
	}

	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		m := &markup{w: w}

		class := "error"
		if ok {
			class = "ok"
		}

		m.raw(`<p id="flash" class="flash `)
		m.raw(class)
		m.raw(`">`)
		m.text(message)
		m.raw(`</p>`)

		return m.err
	})
}

func seatList(view signup.View) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		m := &markup{w: w}

		m.raw(`<section><h2>Players <span id="count">`)
		m.text(strconv.Itoa(view.Taken) + "/" + strconv.Itoa(view.Capacity))
		m.raw(`</span></h2><ol id="slots" class="slots">`)

		for _, seat := range view.Slots {
			if seat.Alternate {
				m.raw(`<li class="alternate">`)
			} else {
				m.raw(`<li>`)
			}
			m.raw(`<span class="name">`)
			m.text(seat.Name)
			m.raw(`</span><span class="joined">`)
			m.text(seat.Joined)
			m.raw(`</span>`)
			if seat.Alternate {
				m.raw(`<span class="tag">on call</span>`)
			}
			m.raw(`</li>`)
		}

		if len(view.Slots) == 0 {
			m.raw(`<li class="empty">Nobody has signed up yet.</li>`)
		}

		m.raw(`</ol></section>`)

		return m.err
	})
}

func priorityList(view signup.View) templ.Component {
	if !view.Open || len(view.Priority) == 0 {
		return templ.NopComponent
	}

	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		m := &markup{w: w}

		m.raw(`<section id="priority-section"><h2>Priority this week</h2>`)
		m.raw(`<p class="hint">These players missed last week's game and were seated first.</p>`)
		m.raw(`<ul id="priority" class="priority">`)
		for _, name := range view.Priority {
			m.raw(`<li>`)
			m.text(name)
			m.raw(`</li>`)
		}
		m.raw(`</ul></section>`)

		return m.err
	})
}

func signupForm(prefix, name string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		m := &markup{w: w}

		m.raw(`<section><form method="post" action="`)
		m.url(prefix + "/")
		m.raw(`" class="signup"><label>Name <input type="text" name="name" value="`)
		m.text(name)
		m.raw(`" autocomplete="username" required></label>`)
		m.raw(`<label>Personal code <input type="password" name="code" autocomplete="current-password" required></label>`)
		m.raw(`<div class="actions">`)
		m.raw(`<button type="submit" name="action" value="register">Sign me up</button>`)
		m.raw(`<button type="submit" name="action" value="unregister" class="secondary">Drop out</button>`)
		m.raw(`</div></form></section>`)

		return m.err
	})
}

func pageFooter(prefix, version string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		m := &markup{w: w}

		m.raw(`<footer><img src="`)
		m.url(prefix + "/qr")
		m.raw(`" alt="QR code for this page" width="160" height="160"><p>gamenight v`)
		m.text(version)
		m.raw(`</p></footer>`)

		return m.err
	})
}
