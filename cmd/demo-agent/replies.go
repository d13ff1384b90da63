package main

import "strings"

type cannedReply struct {
	keyword string
	reply   string
}

// Checked in order; the first keyword found in the message wins
var cannedReplies = []cannedReply{
	{"solana", "Solana is a high-performance blockchain supporting 65,000+ TPS with ~400ms block times. It uses Proof of History (PoH) combined with Proof of Stake for consensus. Transaction fees are typically under $0.01."},
	{"nft", "Solana NFTs use the Metaplex standard. The modern approach is Metaplex Core, which uses a single-account model for simpler and cheaper NFTs. NFTs can include images, animations, and even interactive HTML content via the animation_url field."},
	{"staking", "Solana uses Delegated Proof of Stake (DPoS). You can stake SOL with validators to earn rewards (~6-8% APY). Liquid staking protocols like Marinade (mSOL) and Jito (jitoSOL) let you stake while keeping your SOL liquid for DeFi."},
	{"defi", "Solana DeFi includes: Jupiter (DEX aggregator), Raydium & Orca (AMMs), Marinade (liquid staking), Drift (perpetuals), Kamino (lending). The ecosystem processes billions in daily volume with sub-second finality."},
	{"wallet", "Popular Solana wallets include Phantom (most popular), Solflare, Backpack, and Ledger (hardware). Most support SPL tokens, NFTs, staking, and dApp connections via the Wallet Standard."},
	{"token", "Solana tokens use the SPL Token standard. Creating an SPL token costs ~0.002 SOL. Token-2022 (Token Extensions) adds features like transfer fees, confidential transfers, and permanent delegates."},
	{"metaplex", "Metaplex is the NFT standard on Solana. Metaplex Core is the latest version. It stores NFTs as single accounts (cheaper than the legacy Token Metadata approach) and supports plugins for royalties, freeze authority, and more."},
	{"transaction", "Solana transactions can contain multiple instructions. Each transaction has a 1232-byte limit. Priority fees help during congestion. Transactions are confirmed in ~400ms and finalized in ~12 seconds."},
	{"agent", "Agent NFT turns AI agents into Solana NFTs. Each NFT has an embedded chat interface (via animation_url) visible on marketplaces. Authentication uses Sign-In With Solana (SIWS) and NFT ownership verification."},
	{"hello", "Hello! I'm SolBot, a Solana blockchain assistant. Ask me about Solana, NFTs, DeFi, staking, wallets, tokens, or transactions!"},
	{"hi", "Hi there! I'm SolBot, ready to help you learn about Solana. What would you like to know?"},
}

const defaultReply = `I'm SolBot, a Solana blockchain assistant! I can help you understand:

• Solana basics and architecture
• NFTs and Metaplex standards
• DeFi protocols and trading
• Staking and validators
• Wallets and security
• Tokens (SPL & Token-2022)
• Transactions and fees

What would you like to know about?`

func replyTo(message string) string {
	lower := strings.ToLower(message)
	for _, c := range cannedReplies {
		if strings.Contains(lower, c.keyword) {
			return c.reply
		}
	}
	return defaultReply
}
