package domain

// DefaultAllowedOrigins são as origens aceitas pelo gate de origem.
var DefaultAllowedOrigins = []string{
	"https://anires.org",
	"https://www.anires.org",
	"https://airdrop.anires.org",
	"https://app.anires.org",
	"https://presale.anires.org",
	"https://staking.anires.org",
	"https://docs.anires.org",
	"https://vercel.app",
	"https://vercel.com",
}

// DefaultTrustedDomains são os hosts oficiais usados na verificação do site.
var DefaultTrustedDomains = []string{
	"anires.org",
	"www.anires.org",
	"airdrop.anires.org",
	"app.anires.org",
	"presale.anires.org",
	"staking.anires.org",
	"docs.anires.org",
	"localhost",
	"vercel.app",
}
