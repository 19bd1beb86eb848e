package handlers

const (
	msgWelcome = "🎉 Welcome to the PumpFunReplyBot! 🎉\n\n" +
		"This bot allows you to interact and perform actions on pump.fun. " +
		"Please use it responsibly and have fun!\n\n" +
		"Click the button below to start."

	msgTokenPrompt = "Please provide your token address in the format: Df6yfrKC8kZE3KNkrHERKzAetSxbrWeniQfyJY4Jpump"

	msgInvalidToken = "❗ Invalid token address. Please provide a valid Solana address."

	msgTierMenu = "💰 Select the number of messages you want to send and the associated payment plan:\n\n" +
		"1️⃣ 10 messages for 0.01 SOL\n" +
		"2️⃣ 25 messages for 0.025 SOL\n" +
		"3️⃣ 50 messages for 0.05 SOL\n" +
		"4️⃣ 75 messages for 0.075 SOL\n" +
		"5️⃣ 100 messages for 0.1 SOL\n" +
		"6️⃣ 250 messages for 0.25 SOL\n" +
		"7️⃣ 500 messages for 0.5 SOL\n" +
		"8️⃣ 750 messages for 0.75 SOL\n" +
		"9️⃣ 1000 messages for 1.0 SOL\n\n" +
		"Select the amount of messages you want to send:"

	msgVerified = "🎉 Payment verified! Your messages are on the way..."

	msgVerifyBusy = "⏳ Verification already in progress. Please wait."

	msgCancelled = "❌ Cancelled. Send /start to begin again."

	msgHelp = "Send /start, follow the prompts: token address, plan, payment. " +
		"After the payment is verified the bot sends your messages automatically. " +
		"Use /cancel to abort at any time."

	msgUnknown = "I didn't understand that. Send /start to begin."
)
