package main

import (
	"fmt"
	"io"
	"text/template"
)

// The "flag" package is not tty aware so, as the teacher does, 100 columns is an arbitrary
// conservative tty width for the usage output.
const usageMessageTemplate = `
NAME
          {{.ProgramName}} -- discover, validate, and serve open proxy servers

SYNOPSIS
          {{.ProgramName}} grab  [options]
          {{.ProgramName}} find  [options]
          {{.ProgramName}} serve [options]

DESCRIPTION
          {{.ProgramName}} continuously discovers candidate open proxy servers from public
          providers, validates each candidate against one or more transport protocols (HTTP,
          HTTPS via CONNECT, SOCKS4, SOCKS5, SMTP-CONNECT) using third-party judge endpoints, and
          classifies the anonymity level of working HTTP proxies.

          grab streams discovered candidates (filtered by country, unvalidated) to the chosen
          output format.

          find validates discovered candidates against the requested protocols/levels and streams
          only the ones that pass.

          serve runs a forwarding gateway: validated proxies feed a live pool, and inbound client
          connections are forwarded through pool entries matching the client's scheme.

OPTIONS
          --countries code    (grab, find, serve; repeatable) restrict to these ISO country codes
          --limit N            (grab, find) stop after emitting this many proxies
          --format f            (grab, find) default, text, or json
          --outfile path        (grab, find) write output here instead of stdout

          --types T             (find, serve; repeatable) protocol to validate
          --files path          (find, serve; repeatable) file of host:port candidates
          --levels L            (find, serve; repeatable) anonymity level to admit
          --max-tries N         (find, serve) per-protocol validation attempts
          --support-cookies     (find, serve) require the judge to echo the probe cookie
          --support-referer     (find, serve) require the judge to echo the probe referer
          --verify-tls          (find, serve) verify judge TLS certificates

          --host H --port P    (serve) gateway listen address
          --setuid user --setgid group --chroot dir
                                (serve) drop privileges once the listener is bound
          --status-interval D   (serve) periodic status report interval

          --max-conn N --timeout D --log level --skip-version-check --geoip-db path
          --resolv-conf path --gops --cpu-profile file --mem-profile file

          --version
`

func usage(out io.Writer) {
	tmpl, err := template.New("usage").Parse(usageMessageTemplate)
	if err != nil {
		panic(err) // We've messed up our template
	}
	if err := tmpl.Execute(out, consts); err != nil {
		panic(err) // We've messed up our template
	}
	fmt.Fprintln(out, "\nVersion:", consts.Version)
}
